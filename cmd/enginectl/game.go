package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/yourusername/qrush/internal/domain/entity"
)

func newGameCmd(cfg *rootConfig) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "game",
		Short: "Create, list, cancel, or emergency-end games",
	}

	cmd.AddCommand(
		newGameCreateCmd(cfg),
		newGameListCmd(cfg),
		newGameCancelCmd(cfg),
		newGameEmergencyEndCmd(cfg),
	)
	return cmd
}

// newGameCreateCmd creates a scheduled game and its questions in one call —
// a dashboard's CSV bulk-import path is out of scope here; this is the
// minimal JSON equivalent for driving the engine without it.
func newGameCreateCmd(cfg *rootConfig) *cobra.Command {
	var (
		title         string
		chatID        string
		scheduledTime string
		prizePool     string
		questionsFile string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Schedule a new game",
		RunE: func(cmd *cobra.Command, args []string) error {
			startAt, err := time.Parse(time.RFC3339, scheduledTime)
			if err != nil {
				return fmt.Errorf("invalid --scheduled-time (want RFC3339): %w", err)
			}

			pool, err := decimal.NewFromString(prizePool)
			if err != nil {
				return fmt.Errorf("invalid --prize-pool: %w", err)
			}

			questions, err := loadQuestionsFile(questionsFile)
			if err != nil {
				return err
			}

			r, err := openRepos(cfg)
			if err != nil {
				return err
			}

			game := &entity.Game{
				ID:            uuid.New(),
				Title:         title,
				ChatID:        chatID,
				ScheduledTime: startAt,
				Status:        entity.GameStatusScheduled,
				QuestionCount: len(questions),
				PrizePool:     pool,
			}
			if err := r.games.Create(game); err != nil {
				return fmt.Errorf("create game: %w", err)
			}

			for i := range questions {
				questions[i].ID = uuid.New()
				questions[i].GameID = game.ID
				questions[i].Sequence = i
			}
			if len(questions) > 0 {
				if err := r.questions.CreateBatch(questions); err != nil {
					return fmt.Errorf("create questions: %w", err)
				}
			}

			fmt.Printf("created game %s %q scheduled for %s with %d questions\n", game.ID, title, startAt.Format(time.RFC3339), len(questions))
			return nil
		},
	}

	fs := cmd.Flags()
	fs.StringVar(&title, "title", "", "game title (required)")
	fs.StringVar(&chatID, "chat-id", "", "chat/recipient group id to announce into (required)")
	fs.StringVar(&scheduledTime, "scheduled-time", "", "RFC3339 start time (required)")
	fs.StringVar(&prizePool, "prize-pool", "0.00", "total prize pool, decimal string")
	fs.StringVar(&questionsFile, "questions", "", "path to a JSON array of {text,options[4],correct_answer,time_limit_sec}")
	cmd.MarkFlagRequired("title")
	cmd.MarkFlagRequired("chat-id")
	cmd.MarkFlagRequired("scheduled-time")

	return cmd
}

// questionInput mirrors the JSON shape accepted by --questions; kept
// separate from entity.Question because CorrectAnswer there is tagged
// json:"-" (never exposed to players) and options round-trip through
// entity.StringArray instead of a bare []string.
type questionInput struct {
	Text          string   `json:"text"`
	Options       []string `json:"options"`
	CorrectAnswer string   `json:"correct_answer"`
	TimeLimitSec  int      `json:"time_limit_sec"`
}

func loadQuestionsFile(path string) ([]entity.Question, error) {
	if path == "" {
		return nil, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read questions file: %w", err)
	}

	var inputs []questionInput
	if err := json.Unmarshal(data, &inputs); err != nil {
		return nil, fmt.Errorf("parse questions file: %w", err)
	}

	out := make([]entity.Question, 0, len(inputs))
	for i, in := range inputs {
		if len(in.Options) != 4 {
			return nil, fmt.Errorf("question %d: expected exactly 4 options, got %d", i, len(in.Options))
		}
		timeLimit := in.TimeLimitSec
		if timeLimit <= 0 {
			timeLimit = 10
		}
		out = append(out, entity.Question{
			Text:          in.Text,
			Options:       entity.StringArray(in.Options),
			CorrectAnswer: in.CorrectAnswer,
			TimeLimitSec:  timeLimit,
		})
	}
	return out, nil
}

func newGameListCmd(cfg *rootConfig) *cobra.Command {
	var limit, offset int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List games",
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := openRepos(cfg)
			if err != nil {
				return err
			}
			games, err := r.games.List(limit, offset)
			if err != nil {
				return fmt.Errorf("list games: %w", err)
			}
			for _, g := range games {
				fmt.Printf("%s  %-12s %-30s starts %s  pool $%s\n",
					g.ID, g.Status, truncate(g.Title, 30), g.ScheduledTime.Format(time.RFC3339), g.PrizePool.StringFixed(2))
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 50, "max rows")
	cmd.Flags().IntVar(&offset, "offset", 0, "pagination offset")
	return cmd
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-1] + "…"
}

func newGameCancelCmd(cfg *rootConfig) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cancel <game-id>",
		Short: "Cancel a scheduled or not-yet-started game",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid game id: %w", err)
			}
			r, err := openRepos(cfg)
			if err != nil {
				return err
			}
			if err := r.games.UpdateStatus(id, entity.GameStatusCancelled); err != nil {
				return fmt.Errorf("cancel game: %w", err)
			}
			fmt.Printf("game %s cancelled\n", id)
			return nil
		},
	}
	return cmd
}

// newGameEmergencyEndCmd forces a game already in_progress to end — a
// high-priority cancellation an operator can issue by hand. This command
// only performs the status transition; the game's actor in the running
// engine process re-reads the status before each question and, on seeing
// cancelled, apologizes to the alive players and stops the game.
func newGameEmergencyEndCmd(cfg *rootConfig) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "emergency-end <game-id>",
		Short: "Force-end a game currently in progress",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid game id: %w", err)
			}
			r, err := openRepos(cfg)
			if err != nil {
				return err
			}
			if err := r.games.UpdateStatus(id, entity.GameStatusCancelled); err != nil {
				return fmt.Errorf("emergency-end game: %w", err)
			}
			fmt.Printf("game %s flagged cancelled; the running engine process will apologize to players and stop it before its next question\n", id)
			return nil
		},
	}
	return cmd
}
