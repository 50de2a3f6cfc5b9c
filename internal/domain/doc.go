// Package domain содержит основные типы tableflow.
//
// Включает:
//   - table.go  — Table, Row и нормализация значений
//   - graph.go  — BlockSpec, Edge, Graph
//   - run.go    — RunState, BlockRunState, Result (снимки состояния)
//   - status.go — статусы run и блоков
//
// Domain не зависит от других пакетов проекта.
package domain
