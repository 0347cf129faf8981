// Package report renders an end-of-run summary to the terminal: per-source
// acquisition stats, reconciliation numbers, and the best packages found.
package report

import (
	"fmt"
	"sort"
	"strings"

	"tripscout/assembler"
	"tripscout/models"
	"tripscout/utils"
)

type Summary struct {
	Stats     *models.RunStats
	Canonical int
	Packages  []*models.Package
	Assembly  *assembler.Stats
}

type Reporter struct {
	logger *utils.Logger
}

func NewReporter(logger *utils.Logger) *Reporter {
	return &Reporter{logger: logger}
}

// Print renders the run summary. Formatting mirrors the terminal-friendly
// ANSI style used by the logger.
func (r *Reporter) Print(s *Summary) {
	sep := strings.Repeat("═", 58)
	thin := strings.Repeat("─", 58)

	fmt.Printf("\n\033[1;35m%s\033[0m\n", sep)
	fmt.Printf("\033[1;35m  ✈  TRIPSCOUT RUN SUMMARY\033[0m\n")
	fmt.Printf("\033[1;35m%s\033[0m\n\n", sep)

	// Acquisition
	fmt.Printf("\033[1;33m  Acquisition (run %s)\033[0m\n", s.Stats.RunID)
	fmt.Printf("  %s\n", thin)
	fmt.Printf("  Units          : \033[1m%d\033[0m (%d ok, %d failed, %d cancelled)\n",
		s.Stats.TotalUnits, s.Stats.Succeeded, s.Stats.Failed, s.Stats.Cancelled)
	fmt.Printf("  Failure rate   : \033[1m%.1f%%\033[0m (threshold %.1f%%)\n",
		s.Stats.FailureRate()*100, s.Stats.Threshold*100)
	fmt.Printf("  Offers fetched : \033[1m%d\033[0m (%d dropped by validation)\n",
		s.Stats.OffersFetched, s.Stats.DroppedOffers)
	fmt.Println()

	// Per-source table, worst sources first.
	fmt.Printf("\033[1;33m  Per Source\033[0m\n")
	fmt.Printf("  %s\n", thin)
	type row struct {
		name string
		st   *models.SourceStats
	}
	var rows []row
	for name, st := range s.Stats.PerSource {
		rows = append(rows, row{name, st})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].st.Failed != rows[j].st.Failed {
			return rows[i].st.Failed > rows[j].st.Failed
		}
		return rows[i].name < rows[j].name
	})
	for _, rw := range rows {
		status := "\033[1;32m✓\033[0m"
		if rw.st.Failed > 0 {
			status = "\033[1;31m✗\033[0m"
		}
		fmt.Printf("  %s %-14s %3d ok / %3d failed  (%d offers)\n",
			status, rw.name, rw.st.Succeeded, rw.st.Failed, rw.st.Offers)
	}
	fmt.Println()

	// Reconciliation
	fmt.Printf("\033[1;33m  Reconciliation\033[0m\n")
	fmt.Printf("  %s\n", thin)
	merged := s.Stats.OffersFetched - s.Canonical
	if merged < 0 {
		merged = 0
	}
	fmt.Printf("  Canonical offers : \033[1m%d\033[0m (%d duplicates merged)\n", s.Canonical, merged)
	fmt.Println()

	// Assembly
	if s.Assembly != nil {
		fmt.Printf("\033[1;33m  Package Assembly\033[0m\n")
		fmt.Printf("  %s\n", thin)
		fmt.Printf("  Pairs considered : %d\n", s.Assembly.PairsTried)
		fmt.Printf("  Created          : \033[1;32m%d\033[0m\n", s.Assembly.Created)
		fmt.Printf("  Rejected         : %d budget, %d duration, %d calendar\n",
			s.Assembly.RejectedBudget, s.Assembly.RejectedNights, s.Assembly.RejectedCalendar)
		fmt.Printf("  Duplicates       : %d\n", s.Assembly.Duplicates)
		if len(s.Assembly.NoLodging) > 0 {
			fmt.Printf("  \033[1;31mNo lodging for   : %s\033[0m\n",
				strings.Join(s.Assembly.NoLodging, ", "))
		}
		fmt.Println()
	}

	// Top packages by total cost.
	fmt.Printf("\033[1;33m  Cheapest Packages\033[0m\n")
	fmt.Printf("  %s\n", thin)
	if len(s.Packages) == 0 {
		fmt.Printf("  No packages within constraints\n")
	} else {
		top := make([]*models.Package, len(s.Packages))
		copy(top, s.Packages)
		sort.Slice(top, func(i, j int) bool {
			return top[i].Cost.Total < top[j].Cost.Total
		})
		if len(top) > 5 {
			top = top[:5]
		}
		for i, p := range top {
			name := truncate(p.Lodging.Name, 30)
			fmt.Printf("  \033[1m%d.\033[0m %-12s %s→%s %dn  %-32s \033[1;32m€%.2f\033[0m\n",
				i+1, p.Destination, p.Offer.Origin, p.Offer.Destination,
				p.Nights, name, p.Cost.Total)
			fmt.Printf("     flight €%.2f + hidden €%.2f + stay €%.2f\n",
				p.Cost.BasePrice, p.Cost.HiddenCosts(),
				p.Cost.Lodging+p.Cost.Food+p.Cost.Activities)
		}
	}

	fmt.Printf("\n\033[1;35m%s\033[0m\n\n", sep)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
