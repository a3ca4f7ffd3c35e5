// Package dispatch реализует движок рассылки: реестр подключений, квоты и флуд-вейты,
// разбор адресатов, пошаговый автомат аккаунта и два периодических цикла
// (тик рассылки и календарный автозапуск).
//
// Всё состояние выполнения принадлежит Coordinator: одна запись на каждый
// запущенный аккаунт, создаётся при старте и удаляется при остановке.
package dispatch
