package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kailas-cloud/medrag/internal/domain"
)

func newMigrateCmd(env *string) *cobra.Command {
	var seed bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create the vector index and registry tables",
		Long: `Create the vector index (or collection) and, for the postgres registry,
the facilities and patient_identifiers tables. With --seed, the facilities
listed under registry.facilities are upserted into postgres.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := bootstrap(*env)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			ctx := cmd.Context()
			a, err := buildApp(ctx, cfg, logger)
			if err != nil {
				return fmt.Errorf("build app: %w", err)
			}
			defer a.Close(ctx)

			if err := a.store.EnsureSchema(ctx); err != nil {
				return fmt.Errorf("vector store schema: %w", err)
			}
			logger.Info("Vector store schema ready", zap.String("driver", cfg.VectorStore.Driver))

			if a.pgRepo == nil {
				return nil
			}
			if err := a.pgRepo.Migrate(ctx); err != nil {
				return fmt.Errorf("registry schema: %w", err)
			}
			logger.Info("Registry schema ready")

			if !seed {
				return nil
			}
			for _, f := range cfg.Registry.Facilities {
				fac := domain.Facility{ID: f.ID, Name: f.Name, Address: f.Address}
				if err := a.pgRepo.RegisterFacility(ctx, fac); err != nil {
					return fmt.Errorf("seed facility %s: %w", f.ID, err)
				}
				for _, p := range f.Patients {
					if err := a.pgRepo.RegisterPatient(ctx, f.ID, p); err != nil {
						return fmt.Errorf("seed patient %s/%s: %w", f.ID, p, err)
					}
				}
				logger.Info("Seeded facility", zap.String("facility_id", f.ID), zap.Int("patients", len(f.Patients)))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&seed, "seed", false, "Upsert registry.facilities into postgres")
	return cmd
}
