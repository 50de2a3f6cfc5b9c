// Package blocks содержит типы блоков, из которых собирается граф.
//
// Каждый блок реализует Block: Apply(ctx, req) получает входную таблицу
// и возвращает новую. Конфигурация блока типизирована (ReadConfig,
// FilterConfig, ...) и проверяется go-playground/validator как при
// submit (Registry.ValidateSpec), так и перед выполнением.
//
// Блоки:
//   - read       — загрузка таблицы из repo.TableStore
//   - write      — сохранение таблицы, выход = вход
//   - filter     — отбор строк по условию
//   - enrich     — обогащение строк через remote.Service
//   - find_email — поиск email через remote.Service
//
// enrich и find_email выполняют вызовы через worker.Dispatcher и
// прерываются с ErrPaused, если запрошена пауза.
package blocks
