//go:build !gcloud

package main

import (
	"context"
	"log/slog"

	"github.com/medbox-genie/reminder-scheduling/internal/config"
	"github.com/medbox-genie/reminder-scheduling/internal/domain"
	"github.com/medbox-genie/reminder-scheduling/internal/infra/medstore"
)

func initMedicationStore(_ context.Context, cfg *config.Config) (domain.MedicationStore, func() error, error) {
	store, err := medstore.NewFileStore(cfg.Store.Path)
	if err != nil {
		return nil, nil, err
	}

	slog.Info("medication store initialized",
		slog.String("type", "file"),
		slog.String("path", cfg.Store.Path),
	)

	return store, nil, nil
}
