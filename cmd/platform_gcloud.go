//go:build gcloud

package main

import (
	"context"
	"errors"
	"log/slog"

	"cloud.google.com/go/firestore"

	"github.com/medbox-genie/reminder-scheduling/internal/config"
	"github.com/medbox-genie/reminder-scheduling/internal/domain"
	"github.com/medbox-genie/reminder-scheduling/internal/infra/medstore"
)

func initMedicationStore(ctx context.Context, cfg *config.Config) (domain.MedicationStore, func() error, error) {
	if cfg.Store.GCloudProjectID == "" {
		return nil, nil, errors.New("GCLOUD_PROJECT_ID environment variable is required")
	}

	client, err := firestore.NewClient(ctx, cfg.Store.GCloudProjectID)
	if err != nil {
		return nil, nil, err
	}

	slog.Info("medication store initialized",
		slog.String("type", "firestore"),
		slog.String("project", cfg.Store.GCloudProjectID),
		slog.String("users_collection", cfg.Store.UsersCollection),
	)

	cleanup := func() error {
		if err := client.Close(); err != nil {
			slog.Warn("failed to close firestore client", slog.String("error", err.Error()))
			return err
		}
		return nil
	}

	return medstore.NewFirestoreStore(client, cfg.Store.UsersCollection), cleanup, nil
}
