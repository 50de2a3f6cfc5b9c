// Package cli реализует инструмент командной строки tableflow.
//
// # Обзор
//
// CLI — клиентская утилита для взаимодействия с tableflow API.
// Работает через HTTP; ответы API описаны в client.go заново,
// internal/api не импортируется. Файлы workflow (.json, .hcl)
// разбираются пакетом graphfile.
//
// # Ключевые компоненты
//
// ## Client
//
// HTTP-клиент для tableflow API. Инкапсулирует все HTTP-запросы,
// парсинг ответов (DataResponse, ListResponse, ErrorResponse)
// и обработку ошибок.
//
//	client := cli.NewClient("http://localhost:8080")
//	runs, err := client.ListRuns("")
//
// ## Output
//
// Форматирование вывода. Поддерживает два режима:
//   - Таблицы (text/tabwriter) — по умолчанию
//   - JSON (json.MarshalIndent) — с флагом --json
//
// Данные выводятся в stdout, сообщения (Success/Error) — в stderr.
// Это позволяет использовать pipe: tableflow run result ID --format csv > out.csv
//
// ## Commands
//
// Cobra-команды организованы по ресурсам:
//   - run: list, submit, enqueue, status, result, pause, resume, watch, delete
//   - block: list
//   - source: list, upload, download, preview
//
// Каждая группа создаётся через фабричную функцию (NewRunCmd и т.д.),
// принимающую clientFn и outputFn — замыкания для ленивого создания
// Client и Output после парсинга PersistentFlags.
package cli
