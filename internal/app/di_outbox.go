package app

import (
	"fmt"

	outboxRepository "github.com/ederbit/fanout/internal/outbox/repository"
	outboxUsecase "github.com/ederbit/fanout/internal/outbox/usecase"
)

// OutboxEventRepository returns the outbox event repository instance.
func (c *Container) OutboxEventRepository() (outboxUsecase.OutboxEventRepository, error) {
	c.outboxEventRepoInit.Do(func() {
		db, err := c.DB()
		if err != nil {
			c.initErrors["outboxEventRepo"] = fmt.Errorf("failed to get database for outbox event repository: %w", err)
			return
		}

		switch c.config.DBDriver {
		case "mysql":
			c.outboxEventRepo = outboxRepository.NewMySQLOutboxEventRepository(db)
		case "postgres":
			c.outboxEventRepo = outboxRepository.NewPostgreSQLOutboxEventRepository(db)
		default:
			c.initErrors["outboxEventRepo"] = fmt.Errorf("unsupported database driver: %s", c.config.DBDriver)
		}
	})
	if err, exists := c.initErrors["outboxEventRepo"]; exists {
		return nil, err
	}
	return c.outboxEventRepo, nil
}

// SyncStatusRepository returns the sync status repository instance.
// Only PostgreSQL is supported for this store.
func (c *Container) SyncStatusRepository() (outboxUsecase.SyncStatusRepository, error) {
	c.syncStatusRepoInit.Do(func() {
		db, err := c.DB()
		if err != nil {
			c.initErrors["syncStatusRepo"] = fmt.Errorf("failed to get database for sync status repository: %w", err)
			return
		}

		if c.config.DBDriver != "postgres" {
			c.initErrors["syncStatusRepo"] = fmt.Errorf(
				"sync status repository requires the postgres driver, got: %s", c.config.DBDriver)
			return
		}
		c.syncStatusRepo = outboxRepository.NewPostgreSQLSyncStatusRepository(db)
	})
	if err, exists := c.initErrors["syncStatusRepo"]; exists {
		return nil, err
	}
	return c.syncStatusRepo, nil
}

// DeadLetterRepository returns the dead letter repository instance.
// Only PostgreSQL is supported for this store.
func (c *Container) DeadLetterRepository() (outboxUsecase.DeadLetterRepository, error) {
	c.deadLetterRepoInit.Do(func() {
		db, err := c.DB()
		if err != nil {
			c.initErrors["deadLetterRepo"] = fmt.Errorf("failed to get database for dead letter repository: %w", err)
			return
		}

		if c.config.DBDriver != "postgres" {
			c.initErrors["deadLetterRepo"] = fmt.Errorf(
				"dead letter repository requires the postgres driver, got: %s", c.config.DBDriver)
			return
		}
		c.deadLetterRepo = outboxRepository.NewPostgreSQLDeadLetterRepository(db)
	})
	if err, exists := c.initErrors["deadLetterRepo"]; exists {
		return nil, err
	}
	return c.deadLetterRepo, nil
}

// OutboxUseCase returns the outbox use case instance, wrapped with metrics
// recording when metrics are enabled.
func (c *Container) OutboxUseCase() (outboxUsecase.OutboxUseCase, error) {
	c.outboxUseCaseInit.Do(func() {
		useCase, err := c.initOutboxUseCase()
		if err != nil {
			c.initErrors["outboxUseCase"] = err
			return
		}
		c.outboxUseCase = useCase
	})
	if err, exists := c.initErrors["outboxUseCase"]; exists {
		return nil, err
	}
	return c.outboxUseCase, nil
}

func (c *Container) initOutboxUseCase() (outboxUsecase.OutboxUseCase, error) {
	txManager, err := c.TxManager()
	if err != nil {
		return nil, fmt.Errorf("failed to get tx manager for outbox use case: %w", err)
	}

	eventRepo, err := c.OutboxEventRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get outbox event repository for outbox use case: %w", err)
	}

	syncStatusRepo, err := c.SyncStatusRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get sync status repository for outbox use case: %w", err)
	}

	deadLetterRepo, err := c.DeadLetterRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get dead letter repository for outbox use case: %w", err)
	}

	useCase := outboxUsecase.NewOutboxUseCase(
		outboxUsecase.Config{
			BatchSize:     c.config.OutboxBatchSize,
			MaxAttempts:   c.config.OutboxMaxAttempts,
			RetryInterval: c.config.OutboxRetryInterval,
		},
		txManager,
		eventRepo,
		syncStatusRepo,
		deadLetterRepo,
	)

	businessMetrics, err := c.BusinessMetrics()
	if err != nil {
		return nil, err
	}
	return outboxUsecase.NewOutboxUseCaseWithMetrics(useCase, businessMetrics), nil
}

// DeadLetterUseCase returns the dead letter use case instance.
func (c *Container) DeadLetterUseCase() (outboxUsecase.DeadLetterUseCase, error) {
	c.deadLetterUseCaseInit.Do(func() {
		txManager, err := c.TxManager()
		if err != nil {
			c.initErrors["deadLetterUseCase"] = fmt.Errorf("failed to get tx manager for dead letter use case: %w", err)
			return
		}

		eventRepo, err := c.OutboxEventRepository()
		if err != nil {
			c.initErrors["deadLetterUseCase"] = err
			return
		}

		deadLetterRepo, err := c.DeadLetterRepository()
		if err != nil {
			c.initErrors["deadLetterUseCase"] = err
			return
		}

		syncStatusRepo, err := c.SyncStatusRepository()
		if err != nil {
			c.initErrors["deadLetterUseCase"] = err
			return
		}

		c.deadLetterUseCase = outboxUsecase.NewDeadLetterUseCase(
			txManager,
			eventRepo,
			deadLetterRepo,
			syncStatusRepo,
		)
	})
	if err, exists := c.initErrors["deadLetterUseCase"]; exists {
		return nil, err
	}
	return c.deadLetterUseCase, nil
}

// OutboxProcessor returns the outbox processor instance used by the worker.
func (c *Container) OutboxProcessor() (*outboxUsecase.Processor, error) {
	c.outboxProcessorInit.Do(func() {
		outboxUseCase, err := c.OutboxUseCase()
		if err != nil {
			c.initErrors["outboxProcessor"] = err
			return
		}

		syncStatusRepo, err := c.SyncStatusRepository()
		if err != nil {
			c.initErrors["outboxProcessor"] = err
			return
		}

		c.outboxProcessor = outboxUsecase.NewProcessor(
			outboxUsecase.ProcessorConfig{Interval: c.config.OutboxPollInterval},
			outboxUseCase,
			syncStatusRepo,
			outboxUsecase.NewLoggingEventProcessor(c.Logger()),
			c.Logger(),
		)
	})
	if err, exists := c.initErrors["outboxProcessor"]; exists {
		return nil, err
	}
	return c.outboxProcessor, nil
}
