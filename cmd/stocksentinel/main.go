package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/1308774130/StockSentinel/config"
	"github.com/1308774130/StockSentinel/internal/app"
	"github.com/1308774130/StockSentinel/internal/command"
	"github.com/1308774130/StockSentinel/internal/logger"
)

func main() {
	once := flag.Bool("once", false, "Run a single poll cycle and exit (scheduled-job mode)")
	console := flag.Bool("console", false, "Read commands from stdin and print replies")
	flag.Parse()

	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("[stocksentinel] %v", err)
	}
	logger.Init("stocksentinel", logger.ParseLevel(cfg.LogLevel))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	svc, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatalf("[stocksentinel] init failed: %v", err)
	}
	defer svc.Close()

	if *once {
		if err := svc.RunOnce(ctx); err != nil {
			log.Fatalf("[stocksentinel] cycle failed: %v", err)
		}
		return
	}

	if *console {
		go readConsole(ctx, svc.Processor())
	}

	if err := svc.Run(ctx); err != nil {
		log.Fatalf("[stocksentinel] fatal: %v", err)
	}
}

// readConsole runs each stdin line as a chat command.
func readConsole(ctx context.Context, p *command.Processor) {
	fmt.Println("💡 输入命令（help 查看帮助）")
	sc := bufio.NewScanner(os.Stdin)
	for sc.Scan() {
		if ctx.Err() != nil {
			return
		}
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		fmt.Println(p.Handle(ctx, line))
	}
}
