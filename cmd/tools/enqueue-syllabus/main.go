// cmd/tools/enqueue-syllabus/main.go
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/jacobschwantes/syllabase-parser/internal/common/config"
	"github.com/jacobschwantes/syllabase-parser/internal/common/database"
	"github.com/jacobschwantes/syllabase-parser/internal/common/queue"
	"github.com/jacobschwantes/syllabase-parser/internal/models"
)

func main() {
	courseID := flag.String("course", "", "Course id to parse")
	configPath := flag.String("config", "", "Config file (defaults to the normal lookup)")
	flag.Parse()

	if *courseID == "" {
		fmt.Println("Error: -course is required.")
		flag.Usage()
		os.Exit(1)
	}

	var (
		cfg *config.Config
		err error
	)
	if *configPath != "" {
		cfg, err = config.LoadFromFile(*configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}

	rdb, err := database.NewRedis(cfg.Database.Redis)
	if err != nil {
		fmt.Printf("Error creating redis client: %v\n", err)
		os.Exit(1)
	}
	defer rdb.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	payload, err := json.Marshal(models.TriggerMessage{CourseID: models.CourseID(*courseID)})
	if err != nil {
		fmt.Printf("Error encoding message: %v\n", err)
		os.Exit(1)
	}

	if err := queue.Enqueue(ctx, rdb.GetClient(), cfg.Queue.Name, payload); err != nil {
		fmt.Printf("Error enqueueing message: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Enqueued %s on %s\n", payload, cfg.Queue.Name)
}
