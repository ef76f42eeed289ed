package main

import (
	"context"
	"log"
	"os"

	"github.com/dmitrijs2005/gophguard/internal/logging"
	"github.com/dmitrijs2005/gophguard/internal/provision"
	"github.com/dmitrijs2005/gophguard/internal/server"
	"github.com/dmitrijs2005/gophguard/internal/server/config"
	"github.com/dmitrijs2005/gophguard/internal/server/repositories/repomanager"
)

func main() {

	ctx := context.Background()
	cfg := config.LoadConfig()
	logger := logging.NewJSONLogger(os.Stderr, cfg.LogLevel)

	repos := repomanager.NewPostgresRepositoryManager()
	db, err := server.OpenDatabase(ctx, cfg.DatabaseDSN, repos)
	if err != nil {
		log.Fatalf("%v", err)
	}

	svc := server.NewServices(db, repos, cfg, logger)
	tool := provision.NewTool(svc.Users, svc.Credentials, os.Stdin, os.Stdout)

	_, err = tool.Run(ctx)
	_ = db.Close()
	if err != nil {
		log.Fatalf("%v", err)
	}

}
