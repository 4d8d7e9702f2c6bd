package app

import (
	"fmt"

	webhookRepository "github.com/ederbit/fanout/internal/webhook/repository"
	webhookService "github.com/ederbit/fanout/internal/webhook/service"
	webhookUsecase "github.com/ederbit/fanout/internal/webhook/usecase"
)

// WebhookRepository returns the webhook repository instance.
// Only PostgreSQL is supported for this store.
func (c *Container) WebhookRepository() (webhookUsecase.WebhookRepository, error) {
	c.webhookRepoInit.Do(func() {
		db, err := c.DB()
		if err != nil {
			c.initErrors["webhookRepo"] = fmt.Errorf("failed to get database for webhook repository: %w", err)
			return
		}

		if c.config.DBDriver != "postgres" {
			c.initErrors["webhookRepo"] = fmt.Errorf(
				"webhook repository requires the postgres driver, got: %s", c.config.DBDriver)
			return
		}
		c.webhookRepo = webhookRepository.NewPostgreSQLWebhookRepository(db)
	})
	if err, exists := c.initErrors["webhookRepo"]; exists {
		return nil, err
	}
	return c.webhookRepo, nil
}

// DeliveryRepository returns the delivery ledger repository instance.
// Only PostgreSQL is supported for this store.
func (c *Container) DeliveryRepository() (webhookUsecase.DeliveryRepository, error) {
	c.deliveryRepoInit.Do(func() {
		db, err := c.DB()
		if err != nil {
			c.initErrors["deliveryRepo"] = fmt.Errorf("failed to get database for delivery repository: %w", err)
			return
		}

		if c.config.DBDriver != "postgres" {
			c.initErrors["deliveryRepo"] = fmt.Errorf(
				"delivery repository requires the postgres driver, got: %s", c.config.DBDriver)
			return
		}
		c.deliveryRepo = webhookRepository.NewPostgreSQLDeliveryRepository(db)
	})
	if err, exists := c.initErrors["deliveryRepo"]; exists {
		return nil, err
	}
	return c.deliveryRepo, nil
}

// Signer returns the webhook payload signer.
func (c *Container) Signer() webhookService.Signer {
	return c.signer
}

// SecretGenerator returns the webhook secret generator.
func (c *Container) SecretGenerator() webhookService.SecretGenerator {
	return c.secretGenerator
}

// WebhookUseCase returns the webhook registry use case instance, wrapped with
// metrics recording when metrics are enabled.
func (c *Container) WebhookUseCase() (webhookUsecase.WebhookUseCase, error) {
	c.webhookUseCaseInit.Do(func() {
		webhookRepo, err := c.WebhookRepository()
		if err != nil {
			c.initErrors["webhookUseCase"] = err
			return
		}

		deliveryRepo, err := c.DeliveryRepository()
		if err != nil {
			c.initErrors["webhookUseCase"] = err
			return
		}

		businessMetrics, err := c.BusinessMetrics()
		if err != nil {
			c.initErrors["webhookUseCase"] = err
			return
		}

		useCase := webhookUsecase.NewWebhookUseCase(webhookRepo, deliveryRepo, c.secretGenerator)
		c.webhookUseCase = webhookUsecase.NewWebhookUseCaseWithMetrics(useCase, businessMetrics)
	})
	if err, exists := c.initErrors["webhookUseCase"]; exists {
		return nil, err
	}
	return c.webhookUseCase, nil
}

// DeliveryUseCase returns the webhook delivery engine instance, wrapped with
// metrics recording when metrics are enabled.
func (c *Container) DeliveryUseCase() (webhookUsecase.DeliveryUseCase, error) {
	c.deliveryUseCaseInit.Do(func() {
		webhookRepo, err := c.WebhookRepository()
		if err != nil {
			c.initErrors["deliveryUseCase"] = err
			return
		}

		deliveryRepo, err := c.DeliveryRepository()
		if err != nil {
			c.initErrors["deliveryUseCase"] = err
			return
		}

		businessMetrics, err := c.BusinessMetrics()
		if err != nil {
			c.initErrors["deliveryUseCase"] = err
			return
		}

		useCase := webhookUsecase.NewDeliveryUseCase(
			webhookUsecase.DeliveryConfig{Timeout: c.config.WebhookTimeout},
			webhookRepo,
			deliveryRepo,
			c.signer,
			c.Logger(),
		)
		c.deliveryUseCase = webhookUsecase.NewDeliveryUseCaseWithMetrics(useCase, businessMetrics)
	})
	if err, exists := c.initErrors["deliveryUseCase"]; exists {
		return nil, err
	}
	return c.deliveryUseCase, nil
}

// WebhookRetryProcessor returns the webhook retry processor used by the worker.
func (c *Container) WebhookRetryProcessor() (*webhookUsecase.RetryProcessor, error) {
	c.webhookRetryProcInit.Do(func() {
		webhookRepo, err := c.WebhookRepository()
		if err != nil {
			c.initErrors["webhookRetryProc"] = err
			return
		}

		deliveryRepo, err := c.DeliveryRepository()
		if err != nil {
			c.initErrors["webhookRetryProc"] = err
			return
		}

		deliveryUseCase, err := c.DeliveryUseCase()
		if err != nil {
			c.initErrors["webhookRetryProc"] = err
			return
		}

		c.webhookRetryProc = webhookUsecase.NewRetryProcessor(
			webhookUsecase.RetryProcessorConfig{
				PollInterval: c.config.WebhookRetryPollInterval,
				BatchSize:    c.config.WebhookRetryBatchSize,
			},
			webhookRepo,
			deliveryRepo,
			deliveryUseCase,
			c.Logger(),
		)
	})
	if err, exists := c.initErrors["webhookRetryProc"]; exists {
		return nil, err
	}
	return c.webhookRetryProc, nil
}
