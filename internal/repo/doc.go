// Package repo содержит хранилища именованных таблиц.
//
// TableStore — контракт источника/приёмника данных для блоков read и write.
// Реализации:
//   - CSVStore   — каталог DATA_DIR с CSV-файлами (по умолчанию)
//   - TableRepo  — PostgreSQL через pgxpool (STORE_BACKEND=postgres)
//   - MemoryStore — в памяти процесса (тесты, STORE_BACKEND=memory)
package repo
