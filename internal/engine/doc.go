// Package engine компилирует граф блоков в порядок выполнения.
//
// Включает:
//   - parser.go   — структурная валидация графа
//   - compiler.go — построение DAG и топологическая сортировка (алгоритм Кана)
//   - errors.go   — GraphError и sentinel-ошибки
//
// Engine — единственный источник истины о порядке блоков:
// порядок, присланный клиентом, только проверяется через VerifyOrder.
package engine
