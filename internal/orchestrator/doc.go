// Package orchestrator управляет выполнением runs.
//
// Orchestrator отвечает за:
//   - Компиляцию графа и проверку конфигураций блоков при submit
//   - Запуск Controller на каждый run
//   - Pause/resume и выдачу снимков состояния и результата
//   - Приём запросов на запуск из очереди runs.submit
//   - Вытеснение устаревших run из Registry
//
// Controller выполняет блоки одного run последовательно в своей горутине.
// Разные run выполняются независимо и параллельно.
package orchestrator
