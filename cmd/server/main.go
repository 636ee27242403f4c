package main

import (
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"

	"github.com/Ikomia-dev/infer-transunet/internal/handlers"
	"github.com/Ikomia-dev/infer-transunet/internal/segment"
)

func enableCORS(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next(w, r)
	}
}

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	viper.AutomaticEnv()
	viper.SetDefault("PORT", "8080")
	viper.SetDefault("CONFIG_FILE", "models/config.yaml")
	viper.SetDefault("MODEL_FILE", "models/model.onnx")

	configFile := viper.GetString("CONFIG_FILE")
	modelFile := viper.GetString("MODEL_FILE")

	service := segment.NewService(configFile, modelFile)
	defer service.Close()

	handler := handlers.NewHandler(service)

	http.HandleFunc("/health", enableCORS(handler.Health))
	http.HandleFunc("/segment", enableCORS(handler.Segment))
	http.HandleFunc("/reload", enableCORS(handler.Reload))

	port := viper.GetString("PORT")
	log.Info().
		Str("port", port).
		Str("config", configFile).
		Str("model", modelFile).
		Msg("server starting")
	log.Info().Msg("endpoints: GET /health, POST /segment, POST /reload")

	if err := http.ListenAndServe(":"+port, nil); err != nil {
		log.Fatal().Err(err).Msg("server failed")
	}
}
