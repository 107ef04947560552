package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/promark/verify-api/internal/config"
	"github.com/promark/verify-api/internal/infrastructure/dynamo"
	jwtinfra "github.com/promark/verify-api/internal/infrastructure/jwt"
	"github.com/promark/verify-api/internal/infrastructure/oracle"
	s3infra "github.com/promark/verify-api/internal/infrastructure/s3"
	"github.com/promark/verify-api/internal/infrastructure/smtp"
	"github.com/promark/verify-api/internal/infrastructure/sns"
	transporthttp "github.com/promark/verify-api/internal/transport/http"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, reading from environment")
	}

	cfg := config.Load()

	// Bootstrap DynamoDB tables (creates them if they don't exist).
	dynamoClient := dynamo.NewClient(cfg)
	dynamo.Bootstrap(context.Background(), dynamoClient, cfg.DynamoTables)

	// JWT provider (optional — graceful fallback if keys are missing).
	var jwtProvider *jwtinfra.Provider
	if p, err := jwtinfra.NewProvider(cfg); err == nil {
		jwtProvider = p
	} else {
		log.Printf("WARN: JWT provider not available: %v", err)
	}

	// S3 evidence store.
	s3Client := s3infra.NewClient(cfg)
	evidenceStore := s3infra.NewStore(s3Client, cfg.S3BucketName)

	// SMTP mailer for passcode delivery.
	mailer := smtp.NewMailer(cfg)

	// Gemini classification oracle. Without it audits cannot run, so this one
	// is required.
	classifier, err := oracle.NewGeminiClassifier(cfg)
	if err != nil {
		log.Fatalf("classification oracle not available: %v", err)
	}

	// SNS lifecycle event publisher (optional — graceful fallback).
	var events sns.EventPublisher
	if p, err := sns.NewPublisher(cfg); err == nil {
		events = p
	} else {
		log.Printf("WARN: SNS publisher not available: %v", err)
	}

	deps := &transporthttp.Deps{
		SessionRepo:   dynamo.NewSessionRepo(dynamoClient, cfg.DynamoTables.Sessions),
		ChallengeRepo: dynamo.NewChallengeRepo(dynamoClient, cfg.DynamoTables.Challenges),
		EvidenceStore: evidenceStore,
		Mailer:        mailer,
		Oracle:        classifier,
		Events:        events,
		JWTProvider:   jwtProvider,
	}

	router := transporthttp.NewRouter(cfg, deps)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.AppPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 45 * time.Second, // audit responses wait on the oracle
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Server starting on :%s (env=%s)", cfg.AppPort, cfg.AppEnv)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("forced shutdown: %v", err)
	}
	log.Println("Server stopped")
}
