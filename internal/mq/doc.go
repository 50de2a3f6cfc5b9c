// Package mq — обмен сообщениями tableflow через RabbitMQ.
//
// Connection держит одно соединение с каналом и переподключается
// с экспоненциальной задержкой. Topology объявляет обменники и очереди:
//
//	tableflow.runs (direct)
//	├── runs.submit  [submit]  запросы на запуск графа, читает оркестратор
//	└── runs.events  [events]  run.submitted, run.paused, run.resumed,
//	                           run.completed, run.failed
//	tableflow.dlq (direct)
//	└── dlq.runs     [runs]    отклонённые запросы
//
// Сообщение — JSON конверт Message с payload в json.RawMessage;
// DecodePayload разбирает payload в нужный тип.
package mq
