package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/huh/spinner"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/xumezzan/marketplace-project/internal/app"
	"github.com/xumezzan/marketplace-project/internal/domain"
	"github.com/xumezzan/marketplace-project/internal/drafting"
	"github.com/xumezzan/marketplace-project/internal/engine"
	"github.com/xumezzan/marketplace-project/internal/wizard"
)

func taskWizardCmd() *cobra.Command {
	var lang string
	cmd := &cobra.Command{
		Use:   "wizard",
		Short: "Create a task interactively: describe, review, publish",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !term.IsTerminal(int(os.Stdin.Fd())) {
				return errors.New("task wizard needs an interactive terminal; use 'task draft' and 'task create' instead")
			}
			locale, err := drafting.ParseLocale(lang)
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				w := wizard.New(engineDrafter{a.Engine, clientID()}, locale)
				defer w.Close()
				t, err := runWizard(ctx, w, a.Config.Categories)
				if errors.Is(err, errAborted) {
					fmt.Println("Отменено")
					return nil
				}
				if err != nil {
					return err
				}
				task, err := a.Engine.CreateTask(ctx, *t)
				if err != nil {
					return err
				}
				return printMarkdown(taskMarkdown(task))
			})
		},
	}
	cmd.Flags().StringVar(&lang, "language", "ru", "draft language (ru, uz)")
	return cmd
}

// engineDrafter routes wizard drafts through the engine so they are logged
// and counted like API drafts.
type engineDrafter struct {
	eng      *engine.Engine
	clientID string
}

func (d engineDrafter) DraftFromDescription(ctx context.Context, raw string, locale domain.Locale) (domain.TaskDraft, error) {
	return d.eng.DraftTask(ctx, raw, locale, d.clientID)
}

var errAborted = errors.New("wizard aborted")

// runWizard drives the three steps until the task is confirmed.
func runWizard(ctx context.Context, w *wizard.Wizard, categories []string) (*engine.TaskCreateOptions, error) {
	for {
		switch w.Step() {
		case wizard.StepDescribe:
			var input string
			if err := huh.NewText().
				Title("Опишите задачу").
				Description("Например: течет кран на кухне, нужен сантехник завтра").
				Value(&input).
				Run(); err != nil {
				return nil, abortOrErr(err)
			}
			if err := w.SetInput(input); err != nil {
				return nil, err
			}
			var analyzeErr error
			if err := spinner.New().
				Title("Анализируем задачу...").
				Context(ctx).
				Action(func() { analyzeErr = w.Analyze(ctx) }).
				Run(); err != nil {
				return nil, err
			}
			if analyzeErr != nil {
				if errors.Is(analyzeErr, context.Canceled) {
					return nil, analyzeErr
				}
				fmt.Fprintln(os.Stderr, "Не удалось проанализировать задачу:", analyzeErr)
			}
		case wizard.StepDetails:
			back, err := editDetails(w, categories)
			if err != nil {
				return nil, err
			}
			if back {
				if err := w.Back(); err != nil {
					return nil, err
				}
				continue
			}
			if err := w.Next(); err != nil {
				fmt.Fprintln(os.Stderr, err)
			}
		case wizard.StepConfirm:
			d := w.Details()
			if err := printMarkdown(detailsMarkdown(d)); err != nil {
				return nil, err
			}
			publish := true
			if err := huh.NewConfirm().
				Title("Опубликовать задачу?").
				Affirmative("Опубликовать").
				Negative("Назад").
				Value(&publish).
				Run(); err != nil {
				return nil, abortOrErr(err)
			}
			if !publish {
				if err := w.Back(); err != nil {
					return nil, err
				}
				continue
			}
			out, err := w.Submit()
			if err != nil {
				return nil, err
			}
			return &engine.TaskCreateOptions{
				ClientID:    clientID(),
				Title:       out.Title,
				Description: out.Description,
				Category:    out.Category,
				BudgetMin:   out.BudgetMin,
				BudgetMax:   out.BudgetMax,
				Location:    out.Location,
				Date:        out.Date,
			}, nil
		}
	}
}

func editDetails(w *wizard.Wizard, categories []string) (back bool, err error) {
	d := w.Details()
	lo, hi := formatBudget(d.BudgetMin), formatBudget(d.BudgetMax)
	options := huh.NewOptions(categories...)
	if d.Category != "" && !slices.Contains(categories, d.Category) {
		options = append(options, huh.NewOption(d.Category, d.Category))
	}
	next := true
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().Title("Название").Value(&d.Title),
			huh.NewSelect[string]().Title("Категория").Options(options...).Value(&d.Category),
			huh.NewText().Title("Описание").Value(&d.Description),
			huh.NewInput().Title("Бюджет от, ₽").Validate(validateBudgetField).Value(&lo),
			huh.NewInput().Title("Бюджет до, ₽").Validate(validateBudgetField).Value(&hi),
			huh.NewInput().Title("Где").Value(&d.Location),
			huh.NewInput().Title("Когда").Value(&d.Date),
			huh.NewConfirm().Affirmative("Далее").Negative("Назад").Value(&next),
		),
	)
	if err := form.Run(); err != nil {
		return false, abortOrErr(err)
	}
	d.BudgetMin, _ = parseBudget(lo)
	d.BudgetMax, _ = parseBudget(hi)
	if err := w.Edit(func(cur *wizard.Details) { *cur = d }); err != nil {
		return false, err
	}
	return !next, nil
}

func detailsMarkdown(d wizard.Details) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", orDash(d.Title))
	fmt.Fprintf(&b, "**%s** · %s\n\n", orDash(d.Category), budgetString(d.BudgetMin, d.BudgetMax))
	if d.Description != "" {
		fmt.Fprintf(&b, "%s\n\n", d.Description)
	}
	fmt.Fprintf(&b, "- Где: %s\n- Когда: %s\n", orDash(d.Location), orDash(d.Date))
	return b.String()
}

func validateBudgetField(s string) error {
	_, err := parseBudget(s)
	return err
}

func parseBudget(s string) (*float64, error) {
	s = strings.TrimSpace(strings.ReplaceAll(s, " ", ""))
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, fmt.Errorf("введите число")
	}
	if v < 0 {
		return nil, fmt.Errorf("бюджет не может быть отрицательным")
	}
	return &v, nil
}

func formatBudget(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func abortOrErr(err error) error {
	if errors.Is(err, huh.ErrUserAborted) {
		return errAborted
	}
	return err
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}
