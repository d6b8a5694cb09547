package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/repopulse/repopulse/pkg/api"
	"github.com/repopulse/repopulse/pkg/archive"
	"github.com/repopulse/repopulse/pkg/cache"
	"github.com/repopulse/repopulse/pkg/session"
	"github.com/repopulse/repopulse/pkg/tui"
)

const usage = `usage: repopulse [flags] <command>

commands:
  submit <repo-url>      submit a repository and watch the analysis live
  watch <analysis-id>    attach to an existing analysis
  history [limit]        list locally archived analyses
  show <analysis-id>     print an archived result

flags are listed by: repopulse -h`

func main() {
	fmt.Println(`{"level":"info","msg":"system_started","component":"repopulse"}`)

	config, args, err := LoadConfig(os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		fmt.Printf(`{"level":"fatal","msg":"invalid_config","error":"%v"}`+"\n", err)
		os.Exit(1)
	}

	if len(args) == 0 {
		fmt.Println(usage)
		os.Exit(2)
	}

	client := api.NewClient(config.APIURL)

	switch args[0] {
	case "submit":
		if len(args) < 2 {
			fmt.Println("usage: repopulse submit <repo-url>")
			os.Exit(2)
		}
		if err := runSubmit(config, client, args[1]); err != nil {
			fmt.Printf(`{"level":"fatal","msg":"submit_failed","error":"%v"}`+"\n", err)
			os.Exit(1)
		}

	case "watch":
		if len(args) < 2 {
			fmt.Println("usage: repopulse watch <analysis-id>")
			os.Exit(2)
		}
		if err := runWatch(config, client, args[1]); err != nil {
			fmt.Printf(`{"level":"fatal","msg":"watch_failed","error":"%v"}`+"\n", err)
			os.Exit(1)
		}

	case "history":
		limit := 20
		if len(args) > 1 {
			if n, err := strconv.Atoi(args[1]); err == nil {
				limit = n
			}
		}
		if err := runHistory(config, limit); err != nil {
			fmt.Printf(`{"level":"fatal","msg":"history_failed","error":"%v"}`+"\n", err)
			os.Exit(1)
		}

	case "show":
		if len(args) < 2 {
			fmt.Println("usage: repopulse show <analysis-id>")
			os.Exit(2)
		}
		if err := runShow(config, args[1]); err != nil {
			fmt.Printf(`{"level":"fatal","msg":"show_failed","error":"%v"}`+"\n", err)
			os.Exit(1)
		}

	default:
		fmt.Println(usage)
		os.Exit(2)
	}
}

func runSubmit(config Config, client *api.Client, repoURL string) error {
	resp, err := client.Analyze(context.Background(), api.AnalyzeRequest{
		RepoURL:                  repoURL,
		Branch:                   config.Branch,
		MaxFiles:                 config.MaxFiles,
		UseCrossRepoIntelligence: config.CrossRepo,
	})
	if err != nil {
		return fmt.Errorf("failed to submit %s: %w", repoURL, err)
	}

	fmt.Printf(`{"level":"info","msg":"analysis_submitted","analysis_id":"%s","repo":"%s","estimated_duration":%d}`+"\n",
		resp.AnalysisID, resp.RepoName, resp.EstimatedDuration)

	return runWatch(config, client, resp.AnalysisID)
}

func runWatch(config Config, client *api.Client, analysisID string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Both side paths are optional: the dashboard runs the same without them.
	var snapshots session.SnapshotCache
	if config.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: config.RedisAddr})
		snapshots = cache.NewSnapshotCache(rdb)
		fmt.Printf(`{"level":"info","msg":"cache_enabled","addr":"%s"}`+"\n", config.RedisAddr)
	}

	var archiver session.Archiver
	if arch, err := archive.Open(config.DBPath); err != nil {
		log.Printf("archive unavailable, history disabled: %v", err)
	} else {
		archiver = arch
		defer arch.Close()
	}

	if config.MetricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			if err := http.ListenAndServe(config.MetricsAddr, mux); err != nil {
				log.Printf("metrics listener failed: %v", err)
			}
		}()
		fmt.Printf(`{"level":"info","msg":"metrics_enabled","addr":"%s"}`+"\n", config.MetricsAddr)
	}

	store := session.NewStore()
	watcher := session.NewWatcher(client, store, config.WSURL, snapshots, archiver)

	go func() {
		if err := watcher.Watch(ctx, analysisID); err != nil && ctx.Err() == nil {
			log.Printf("watch ended: %v", err)
		}
	}()

	p := tea.NewProgram(tui.New(store), tea.WithAltScreen())
	_, err := p.Run()

	cancel()
	watcher.Stop()
	return err
}

func runHistory(config Config, limit int) error {
	arch, err := archive.Open(config.DBPath)
	if err != nil {
		return fmt.Errorf("failed to open archive: %w", err)
	}
	defer arch.Close()

	entries, err := arch.History(context.Background(), limit)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Println("no archived analyses")
		return nil
	}

	fmt.Printf("%-38s %-28s %-5s %-8s %-9s %s\n", "ANALYSIS", "REPO", "GRADE", "SCORE", "CRITICAL", "ARCHIVED")
	for _, e := range entries {
		fmt.Printf("%-38s %-28s %-5s %-8d %-9d %s\n",
			e.AnalysisID, e.RepoName, e.LetterGrade, e.Overall, e.Critical,
			e.ArchivedAt.Format("2006-01-02 15:04"))
	}
	return nil
}

func runShow(config Config, analysisID string) error {
	arch, err := archive.Open(config.DBPath)
	if err != nil {
		return fmt.Errorf("failed to open archive: %w", err)
	}
	defer arch.Close()

	result, findings, err := arch.Get(context.Background(), analysisID)
	if err != nil {
		return err
	}

	fmt.Printf("%s (%s)\n", result.RepoName, result.AnalysisID)
	if result.HealthScore != nil {
		fmt.Printf("health: %s %d/100\n", result.HealthScore.LetterGrade, result.HealthScore.Overall)
	}
	fmt.Printf("findings: %d critical, %d warning, %d info\n",
		result.Findings.Critical, result.Findings.Warning, result.Findings.Info)
	for _, f := range findings {
		loc := f.Location.PrimaryFile
		if loc != "" && f.Location.StartLine > 0 {
			loc = fmt.Sprintf("%s:%d", loc, f.Location.StartLine)
		}
		fmt.Printf("  [%s] %s  %s (%s)\n", f.Severity, f.Title, loc, f.Agent)
	}
	return nil
}
