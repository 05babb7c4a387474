//go:build ignore

// Renders a sample category chart to graph.png: go run generate_graph.go
package main

import (
	"fmt"
	"os"

	"gitlab.com/yelinaung/ledger-bot/internal/models"
	"gitlab.com/yelinaung/ledger-bot/internal/report"
)

func main() {
	rows := []models.Row{
		models.HeaderRow,
		{"2026.01.02", "Market", "150.50", "Food", "R-101", "House", models.AttachmentNone},
		{"2026.01.05", "Bistro", "130.50", "Food", "R-102", "Personal", models.AttachmentNone},
		{"2026.01.09", "Taxi", "60.00", "Transportation", "R-103", "Business", models.AttachmentNone},
		{"2026.01.12", "Electronics Hub", "25.00", "Electronics", "R-104", "Entertainment", models.AttachmentNone},
		{"2026.01.20", "Furniture Mart", "120.00", "House furniture", "R-105", "House", models.AttachmentNone},
	}

	summary := report.Summarize(report.Records(rows))
	chartData, err := report.CategoryChart(summary, "January 2026")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if err := os.WriteFile("graph.png", chartData, 0600); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("Wrote graph.png")
}
