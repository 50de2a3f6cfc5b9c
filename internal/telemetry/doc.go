// Package telemetry — логи и метрики tableflow.
//
// Логгер строится из LogConfig (уровень, формат json/text, имя сервиса).
// Метрики регистрируются через promauto в глобальном реестре Prometheus
// и отдаются на /metrics сервиса tableflow-api.
package telemetry
