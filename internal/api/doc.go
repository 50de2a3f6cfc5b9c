// Package api содержит HTTP API сервер.
//
// Структура:
//   - handler.go        — Handler с DI (оркестратор, хранилище источников, logger)
//   - routes.go         — регистрация маршрутов
//   - middleware.go     — middleware (recovery, metrics, logging)
//   - response.go       — унифицированные JSON-ответы и обработка ошибок
//   - dto.go            — Data Transfer Objects (request/response)
//   - run_handler.go    — обработчики для /runs
//   - block_handler.go  — обработчики для /blocks
//   - source_handler.go — обработчики для /sources
//
// Результат run выгружается в JSON, CSV или MessagePack.
package api
