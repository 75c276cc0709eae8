package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gpu-renter/observability"
	"gpu-renter/providers/vendormock"

	"github.com/spf13/viper"
)

func main() {
	v := viper.New()
	v.SetDefault("PORT", "4001")
	v.SetDefault("GPU_VENDOR_SECRET", "")
	v.SetDefault("BASE_PRICE_PER_HOUR", 1.4)
	v.SetDefault("FAIL_VENDOR_ID", "")
	v.SetDefault("FAIL_RATE", 0.0)
	v.SetDefault("LOG_MODE", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.AutomaticEnv()

	log, err := observability.NewLogger(v.GetString("LOG_MODE"), v.GetString("LOG_LEVEL"))
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	secret := v.GetString("GPU_VENDOR_SECRET")
	if secret == "" {
		log.Fatal("GPU_VENDOR_SECRET is required")
	}

	mock := vendormock.NewServer(vendormock.Config{
		Secret:           secret,
		BasePricePerHour: v.GetFloat64("BASE_PRICE_PER_HOUR"),
		FailVendorID:     v.GetString("FAIL_VENDOR_ID"),
		FailRate:         v.GetFloat64("FAIL_RATE"),
	})
	server := &http.Server{
		Addr:              ":" + v.GetString("PORT"),
		Handler:           mock,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("vendor mock listening", "port", v.GetString("PORT"), "fail_vendor_id", v.GetString("FAIL_VENDOR_ID"))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("vendor mock failed", "error", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(sctx); err != nil {
		log.Error("vendor mock shutdown", "error", err)
		os.Exit(1)
	}
}
