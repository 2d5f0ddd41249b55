package container

import (
	"log"

	"inspection-rig/config"
	app "inspection-rig/internal/application"
	"inspection-rig/internal/infrastructure/api"
	"inspection-rig/internal/infrastructure/history"
	"inspection-rig/internal/infrastructure/notify"
)

// Container собранные сервисы стенда.
type Container struct {
	API      *api.Client
	Workflow *app.Workflow
	History  *history.Store
	Notifier *notify.Notifier // nil, если уведомления выключены
}

// New собирает сервисы по конфигурации.
func New(cfg *config.Config) (*Container, error) {
	client := api.NewClient(api.Config{
		BaseURL:            cfg.APIBaseURL,
		InsecureSkipVerify: cfg.APIInsecure,
	})

	store, err := history.Open(cfg.HistoryDB)
	if err != nil {
		return nil, err
	}

	var notifier *notify.Notifier
	if cfg.TelegramToken != "" {
		notifier, err = notify.New(cfg.TelegramToken, cfg.TelegramChatID)
		if err != nil {
			// Недоступный Telegram не должен останавливать инспекцию.
			log.Printf("⚠ Telegram notifier disabled: %v", err)
			notifier = nil
		}
	}

	return &Container{
		API:      client,
		Workflow: app.NewWorkflow(client),
		History:  store,
		Notifier: notifier,
	}, nil
}

// Close освобождает ресурсы контейнера.
func (c *Container) Close() {
	if c.History != nil {
		_ = c.History.Close()
	}
}
