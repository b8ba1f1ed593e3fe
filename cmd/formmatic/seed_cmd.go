package main

import (
	"fmt"
	"math/rand"
	"strings"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/formmatic/formmatic/internal/formdoc"
	"github.com/formmatic/formmatic/internal/models"
	"github.com/formmatic/formmatic/internal/scenario"
)

var (
	firstNames = []string{"Ana", "Luis", "Maria", "Jose", "Grace", "Hank", "Ivy", "Jack", "Karen", "Leo", "Mona", "Nick", "Olivia", "Paul", "Rosa", "Sam", "Tina", "Victor"}
	lastNames  = []string{"Diaz", "Lopez", "Garcia", "Nguyen", "Smith", "Kim", "Martinez", "Chen", "Brown", "Lee", "Harris", "Clark", "Patel", "Moore"}
	cities     = []string{"Fresno", "Sacramento", "Oakland", "San Jose", "Bakersfield", "Riverside", "Stockton", "Modesto", "Eureka", "Redding"}
	makes      = []string{"Honda", "Toyota", "Ford", "Chevrolet", "Nissan", "Bayliner", "Sea Ray", "Yamaha"}
)

// vinChars excludes I, O and Q.
const vinChars = "ABCDEFGHJKLMNPRSTUVWXYZ0123456789"

func randomVIN(rng *rand.Rand) string {
	var b strings.Builder
	for i := 0; i < 17; i++ {
		b.WriteByte(vinChars[rng.Intn(len(vinChars))])
	}
	return b.String()
}

func randomDate(rng *rand.Rand) string {
	return fmt.Sprintf("%02d/%02d/%04d", 1+rng.Intn(12), 1+rng.Intn(28), 2018+rng.Intn(7))
}

// generateDoc returns a complete single-owner transfer.
func generateDoc(rng *rand.Rand) formdoc.Document {
	pick := func(s []string) string { return s[rng.Intn(len(s))] }
	sold := randomDate(rng)
	return formdoc.Document{
		"vehicleInformation": map[string]any{
			"hullId": randomVIN(rng),
			"make":   pick(makes),
			"year":   fmt.Sprintf("%d", 1995+rng.Intn(30)),
		},
		"vehicleTransactionDetails": map[string]any{"withTitle": rng.Intn(4) > 0},
		"sellerInfo": map[string]any{
			"sellers":  []any{map[string]any{"firstName": pick(firstNames), "lastName": pick(lastNames), "state": "CA"}},
			"saleDate": sold,
		},
		"owners": []any{map[string]any{
			"firstName":     pick(firstNames),
			"lastName":      pick(lastNames),
			"purchaseDate":  sold,
			"purchaseValue": fmt.Sprintf("%d", 500+rng.Intn(40000)),
		}},
		"address": map[string]any{
			"street": fmt.Sprintf("%d %s St", 100+rng.Intn(9900), pick(lastNames)),
			"city":   pick(cities),
			"state":  "CA",
			"zip":    fmt.Sprintf("9%04d", rng.Intn(10000)),
		},
	}
}

func newSeedCmd(a *app) *cobra.Command {
	var (
		count       int
		concurrency int
		seed        int64
	)
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Save synthetic transactions, e.g. to load-test search",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if count < 1 {
				return fmt.Errorf("--count must be positive")
			}
			// Documents are generated up front so the output does not depend
			// on scheduling.
			rng := rand.New(rand.NewSource(seed))
			reqs := make([]models.SaveRequest, count)
			for i := range reqs {
				reqs[i] = models.SaveRequest{
					UserID:          a.cfg.UserID,
					TransactionType: string(scenario.TransactionTypes[rng.Intn(len(scenario.TransactionTypes))]),
					FormData:        generateDoc(rng),
				}
			}

			start := time.Now()
			var saved atomic.Int64
			g, ctx := errgroup.WithContext(cmd.Context())
			g.SetLimit(max(concurrency, 1))
			for i := range reqs {
				g.Go(func() error {
					if _, err := a.client.Save(ctx, reqs[i]); err != nil {
						return fmt.Errorf("transaction %d: %w", i+1, err)
					}
					saved.Add(1)
					return nil
				})
			}
			err := g.Wait()
			elapsed := time.Since(start)
			n := saved.Load()
			a.printf("saved %d transactions in %s (%.0f/s)\n", n, elapsed.Round(time.Millisecond), float64(n)/elapsed.Seconds())
			return err
		},
	}
	cmd.Flags().IntVarP(&count, "count", "n", 100, "transactions to save")
	cmd.Flags().IntVar(&concurrency, "concurrency", 4, "parallel save calls")
	cmd.Flags().Int64Var(&seed, "seed", 42, "random seed")
	return cmd
}
