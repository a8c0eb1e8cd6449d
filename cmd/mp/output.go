package main

import (
	"encoding/json"
	"fmt"
	"os"
	"slices"

	"github.com/charmbracelet/glamour"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/xumezzan/marketplace-project/internal/domain"
)

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printJSONOrTable prints a single record as JSON or as a field/value table
// sorted by key.
func printJSONOrTable(v any) error {
	if viper.GetBool("json") {
		return printJSON(v)
	}
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	var fields map[string]any
	if err := json.Unmarshal(b, &fields); err != nil {
		fmt.Println(string(b))
		return nil
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	tw := newTable()
	for _, k := range keys {
		val := fields[k]
		switch val.(type) {
		case map[string]any, []any:
			nested, _ := json.Marshal(val)
			val = string(nested)
		}
		tw.AppendRow(table.Row{k, val})
	}
	tw.Render()
	return nil
}

func newTable() table.Writer {
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.SetStyle(table.StyleLight)
	return tw
}

func printTasks(items []domain.Task) error {
	if viper.GetBool("json") {
		return printJSON(items)
	}
	tw := newTable()
	tw.AppendHeader(table.Row{"ID", "Title", "Category", "Budget", "Status", "Client"})
	for _, t := range items {
		tw.AppendRow(table.Row{t.ID, t.Title, t.Category, budgetString(t.BudgetMin, t.BudgetMax), t.Status, t.ClientID})
	}
	tw.Render()
	return nil
}

func printSpecialists(items []domain.Specialist) error {
	if viper.GetBool("json") {
		return printJSON(items)
	}
	tw := newTable()
	tw.AppendHeader(table.Row{"ID", "Name", "Profession", "Rating", "Reviews", "Rate/h"})
	for _, s := range items {
		tw.AppendRow(table.Row{s.ID, s.Name, s.Profession, fmt.Sprintf("%.1f", s.Rating), s.ReviewsCount, s.HourlyRate})
	}
	tw.Render()
	return nil
}

func printReviews(items []domain.Review) error {
	if viper.GetBool("json") {
		return printJSON(items)
	}
	tw := newTable()
	tw.AppendHeader(table.Row{"Date", "Author", "Rating", "Text"})
	for _, r := range items {
		tw.AppendRow(table.Row{r.Date, r.Author, r.Rating, r.Text})
	}
	tw.Render()
	return nil
}

func printDeals(items []domain.Deal) error {
	if viper.GetBool("json") {
		return printJSON(items)
	}
	tw := newTable()
	tw.AppendHeader(table.Row{"ID", "Specialist", "Task", "Amount", "Status", "Payout"})
	for _, d := range items {
		tw.AppendRow(table.Row{d.ID, d.SpecialistID, deref(d.TaskID), d.Amount, d.Status, deref(d.Payout)})
	}
	tw.Render()
	return nil
}

func printOffers(items []domain.Offer) error {
	if viper.GetBool("json") {
		return printJSON(items)
	}
	tw := newTable()
	tw.AppendHeader(table.Row{"ID", "Specialist", "Price", "Status", "Deal", "Message"})
	for _, o := range items {
		tw.AppendRow(table.Row{o.ID, o.SpecialistID, o.Price, o.Status, deref(o.DealID), o.Message})
	}
	tw.Render()
	return nil
}

func printEvents(items []domain.Event) error {
	if viper.GetBool("json") {
		return printJSON(items)
	}
	tw := newTable()
	tw.AppendHeader(table.Row{"ID", "Time", "Type", "Entity", "Actor", "Payload"})
	for _, e := range items {
		tw.AppendRow(table.Row{e.ID, e.TS, e.Type, e.EntityKind + ":" + e.EntityID, e.ActorID, e.Payload})
	}
	tw.Render()
	return nil
}

// printMarkdown renders md for a terminal, or prints it raw when stdout is
// not one.
func printMarkdown(md string) error {
	fd := int(os.Stdout.Fd())
	if !term.IsTerminal(fd) {
		fmt.Print(md)
		return nil
	}
	width, _, err := term.GetSize(fd)
	if err != nil || width <= 0 {
		width = 80
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStylePath("dark"),
		glamour.WithWordWrap(max(width-4, 20)),
	)
	if err != nil {
		return err
	}
	out, err := r.Render(md)
	if err != nil {
		return err
	}
	fmt.Print(out)
	return nil
}

func budgetString(lo, hi *float64) string {
	switch {
	case lo != nil && hi != nil:
		return fmt.Sprintf("%.0f-%.0f ₽", *lo, *hi)
	case lo != nil:
		return fmt.Sprintf("от %.0f ₽", *lo)
	case hi != nil:
		return fmt.Sprintf("до %.0f ₽", *hi)
	}
	return "договорная"
}

func deref(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

func isJSON() bool {
	return viper.GetBool("json")
}
