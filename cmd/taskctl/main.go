// Command taskctl is a terminal client for the TaskPilot API. It signs in,
// requests suggestions, and reconciles saves through the same engine the
// web client uses.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"taskpilot/api/internal/apiclient"
	"taskpilot/api/internal/recon"
)

const usage = `usage: taskctl <command> [flags]

commands:
  signin   -email E -password P        sign in and print the token pair
  suggest  -topic T [-save]            generate suggestions, optionally save all
  list     [-grouped]                  list saved tasks
  add      -title T [-topic P]         save one task
  toggle   -id N                       flip a task's completed flag
  edit     -id N -title T [-topic P]   update a task
  delete   -id N                       delete a task
  stats                                print the completion summary

environment:
  TASKPILOT_API     API base URL (default http://localhost:8686)
  TASKPILOT_TOKEN   access token from a previous signin`

func main() {
	log.SetFlags(0)
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	command := os.Args[1]
	args := os.Args[2:]
	if err := run(ctx, command, args); err != nil {
		log.Fatalf("taskctl %s: %v", command, err)
	}
}

func run(ctx context.Context, command string, args []string) error {
	client := apiclient.New(apiBaseURL())

	if command == "signin" {
		fs := flag.NewFlagSet("signin", flag.ExitOnError)
		email := fs.String("email", "", "account email")
		password := fs.String("password", "", "account password")
		fs.Parse(args)
		if *email == "" || *password == "" {
			return fmt.Errorf("email and password are required")
		}
		creds, err := client.SignIn(ctx, *email, *password)
		if err != nil {
			return err
		}
		fmt.Printf("signed in as %s (%s)\n", creds.UserName, creds.UserID)
		fmt.Printf("export TASKPILOT_TOKEN=%s\n", creds.AccessToken)
		fmt.Printf("refresh token: %s\n", creds.RefreshToken)
		return nil
	}

	token := os.Getenv("TASKPILOT_TOKEN")
	if token == "" {
		return fmt.Errorf("TASKPILOT_TOKEN not set, run taskctl signin first")
	}
	client.SetToken(token)

	info, err := client.Session(ctx)
	if err != nil {
		return err
	}
	if !info.Authenticated {
		return fmt.Errorf("token expired or revoked, run taskctl signin again")
	}

	engine := recon.NewEngine(client, client)
	engine.SetIdentity(info.UserID)
	if err := engine.Load(ctx); err != nil {
		return err
	}

	switch command {
	case "suggest":
		fs := flag.NewFlagSet("suggest", flag.ExitOnError)
		topic := fs.String("topic", "", "topic to generate tasks for")
		save := fs.Bool("save", false, "save every unsaved suggestion")
		fs.Parse(args)
		if *topic == "" {
			return fmt.Errorf("topic is required")
		}
		return runSuggest(ctx, engine, *topic, *save)

	case "list":
		fs := flag.NewFlagSet("list", flag.ExitOnError)
		grouped := fs.Bool("grouped", false, "group tasks by topic")
		fs.Parse(args)
		if *grouped {
			printGroups(engine.Grouped())
			return nil
		}
		printTasks(engine.Tasks())
		return nil

	case "add":
		fs := flag.NewFlagSet("add", flag.ExitOnError)
		title := fs.String("title", "", "task title")
		topic := fs.String("topic", "", "task topic")
		fs.Parse(args)
		if *title == "" {
			return fmt.Errorf("title is required")
		}
		engine.SetTopic(*topic)
		task, err := engine.SaveOne(ctx, *title)
		if err != nil {
			return err
		}
		fmt.Printf("saved #%d %s\n", task.ID, task.Title)
		return nil

	case "toggle":
		fs := flag.NewFlagSet("toggle", flag.ExitOnError)
		id := fs.Int64("id", 0, "task id")
		fs.Parse(args)
		task, err := engine.Toggle(ctx, *id)
		if err != nil {
			return err
		}
		fmt.Printf("#%d %s %s\n", task.ID, checkbox(task.Completed), task.Title)
		return nil

	case "edit":
		fs := flag.NewFlagSet("edit", flag.ExitOnError)
		id := fs.Int64("id", 0, "task id")
		title := fs.String("title", "", "new title")
		topic := fs.String("topic", "", "new topic")
		fs.Parse(args)
		task, err := engine.Edit(ctx, *id, *title, *topic)
		if err != nil {
			return err
		}
		fmt.Printf("updated #%d %s\n", task.ID, task.Title)
		return nil

	case "delete":
		fs := flag.NewFlagSet("delete", flag.ExitOnError)
		id := fs.Int64("id", 0, "task id")
		fs.Parse(args)
		if err := engine.Delete(ctx, *id); err != nil {
			return err
		}
		fmt.Printf("deleted #%d\n", *id)
		return nil

	case "stats":
		stats := engine.Stats()
		fmt.Printf("total:      %d\n", stats.Total)
		fmt.Printf("completed:  %d\n", stats.Completed)
		fmt.Printf("pending:    %d\n", stats.Pending)
		fmt.Printf("rate:       %d%%\n", stats.CompletionRate)
		return nil

	default:
		fmt.Fprintln(os.Stderr, usage)
		return fmt.Errorf("unknown command %q", command)
	}
}

func runSuggest(ctx context.Context, engine *recon.Engine, topic string, save bool) error {
	titles, err := engine.Generate(ctx, topic)
	if err != nil {
		return err
	}

	fmt.Printf("suggestions for %q:\n", topic)
	for _, title := range titles {
		marker := " "
		if engine.IsSaved(title) {
			marker = "= already saved"
		}
		fmt.Printf("  - %s %s\n", title, marker)
	}

	if !save {
		return nil
	}

	outcomes, err := engine.SaveAll(ctx)
	if err != nil && len(outcomes) == 0 {
		return err
	}
	for _, outcome := range outcomes {
		if outcome.Err != nil {
			fmt.Printf("  failed %q: %v\n", outcome.Title, outcome.Err)
			continue
		}
		fmt.Printf("  saved #%d %s\n", outcome.Task.ID, outcome.Task.Title)
	}
	return err
}

func printTasks(tasks []recon.Task) {
	if len(tasks) == 0 {
		fmt.Println("no tasks")
		return
	}
	for _, task := range tasks {
		topic := task.Topic
		if topic == "" {
			topic = recon.UncategorizedTopic
		}
		fmt.Printf("#%-4d %s %-40s %s\n", task.ID, checkbox(task.Completed), task.Title, topic)
	}
}

func printGroups(groups []recon.TopicGroup) {
	for _, group := range groups {
		fmt.Printf("%s:\n", group.Topic)
		for _, task := range group.Tasks {
			fmt.Printf("  #%-4d %s %s\n", task.ID, checkbox(task.Completed), task.Title)
		}
	}
}

func checkbox(completed bool) string {
	if completed {
		return "[x]"
	}
	return "[ ]"
}

func apiBaseURL() string {
	if url := os.Getenv("TASKPILOT_API"); url != "" {
		return url
	}
	return "http://localhost:8686"
}
