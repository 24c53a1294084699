package main

import (
	"github.com/jenz26/afflyt/services"

	"github.com/cloakd/common/context"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

func main() {
	err := godotenv.Load()
	if err != nil {
		log.Warn().Err(err).Msg("No .env file loaded")
	}

	ctx, err := context.NewContext(
		&services.PostgresService{},
		&services.RedisService{},
		&services.MemoryStoreService{},
		&services.MonitoringService{},
		&services.GeolocationService{},
		&services.RateLimitService{},
		&services.LinkService{},
		&services.ClickService{},
		&services.ConversionService{},
		&services.AnalyticsService{},

		&services.HttpService{},
	)
	if err != nil {
		log.Fatal().Err(err)
		return
	}

	err = ctx.Run()
	if err != nil {
		log.Fatal().Err(err)
		return
	}
}
