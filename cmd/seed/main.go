// Command seed populates the marketplace database with sample hydrogen
// credits so a fresh deployment has something to trade.
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"time"

	_ "github.com/lib/pq"

	"github.com/hydrochain/marketplace/internal/app/domain/analytics"
	"github.com/hydrochain/marketplace/internal/app/domain/bid"
	"github.com/hydrochain/marketplace/internal/app/domain/credit"
	"github.com/hydrochain/marketplace/internal/app/domain/notification"
	"github.com/hydrochain/marketplace/internal/app/domain/partnership"
	"github.com/hydrochain/marketplace/internal/app/domain/user"
	"github.com/hydrochain/marketplace/internal/app/storage"
	"github.com/hydrochain/marketplace/internal/app/storage/postgres"
	"github.com/hydrochain/marketplace/internal/config"
)

const adminWallet = "0x742d35cc6634c0532925a3b844bc454e4438f44e"

var certifications = []string{
	"Green Hydrogen Standard", "CertifHy", "TUV SUD Green Hydrogen",
	"Low Carbon Hydrogen Standard", "Renewable Hydrogen Certificate",
}

var certificationLevels = []string{
	credit.LevelStandard, credit.LevelPremium, credit.LevelVerified, credit.LevelCertified,
}

var partnershipTypes = []string{
	partnership.TypeCorporateBulk, partnership.TypeLongTerm,
	partnership.TypeExclusive, partnership.TypeRenewableOnly,
}

var projectTypes = []string{
	"Electrolysis", "Steam Reforming", "Biomass Gasification",
	"Solar Thermochemical", "Wind-Powered Electrolysis", "Nuclear Electrolysis",
	"Photobiological Production",
}

var countries = []string{
	"Germany", "Netherlands", "Japan", "Australia", "Chile",
	"Norway", "Denmark", "United States", "Canada", "South Korea",
}

var projectNames = []string{
	"NorthSea Green H2 Plant", "Solar Hydrogen Australia", "WindH2 Netherlands",
	"Nordic Electrolysis Hub", "Patagonia H2 Project", "Rhine Valley Hydrogen",
	"Baltic Sea Wind-to-H2", "Sahara Solar Hydrogen", "Arctic Green Energy",
	"Mediterranean H2 Initiative", "Pacific Rim Hydrogen", "Alpine Clean H2",
	"Desert Solar Electrolysis", "Offshore Wind H2", "Geothermal Hydrogen Plant",
	"Industrial H2 Cluster", "Green Valley Project", "Ocean Energy H2",
	"Mountain Peak Electrolysis", "Coastal Wind Hydrogen", "Urban H2 Network",
}

func main() {
	count := flag.Int("credits", 21, "Number of hydrogen credits to seed")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if cfg.Database.DSN == "" {
		log.Fatalf("DATABASE_URL is required for seeding")
	}

	db, err := sql.Open("postgres", cfg.Database.DSN)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer db.Close()

	if err := postgres.Migrate(db); err != nil {
		log.Fatalf("migrate: %v", err)
	}

	ctx := context.Background()
	store := postgres.New(db)
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	if err := seed(ctx, store, rng, *count); err != nil {
		log.Fatalf("seed: %v", err)
	}
}

func seed(ctx context.Context, store *postgres.Store, rng *rand.Rand, count int) error {
	admin, err := store.GetUserByWallet(ctx, adminWallet)
	if err != nil {
		admin, err = store.CreateUser(ctx, user.User{
			Username:          "admin",
			WalletAddress:     adminWallet,
			Email:             "admin@hydrochain.com",
			CompanyName:       "HydroChain Ltd",
			IsVerified:        true,
			IsPartner:         true,
			VerificationLevel: user.LevelEnterprise,
			ReputationScore:   5.0,
		})
		if err != nil {
			return fmt.Errorf("create admin: %w", err)
		}
		fmt.Printf("created admin user %s\n", admin.ID)
	}

	existing, err := store.ListCredits(ctx, storage.CreditFilter{})
	if err != nil {
		return fmt.Errorf("list credits: %w", err)
	}
	if len(existing) >= count {
		fmt.Printf("database already has %d credits, skipping\n", len(existing))
		return nil
	}

	now := time.Now().UTC()
	credits := make([]credit.Credit, 0, count)
	for i := 1; i <= count; i++ {
		name := projectName(rng, i)
		quantity := round1(100 + rng.Float64()*4900)
		price := round2(2.5 + rng.Float64()*5.5)

		c, err := store.CreateCredit(ctx, credit.Credit{
			TokenID:             int64(i),
			ProjectName:         name,
			QuantityKg:          quantity,
			Price:               price,
			MinBidPrice:         round2(price * 0.9),
			VintageYear:         2020 + rng.Intn(6),
			Certification:       pick(rng, certifications),
			CertificationLevel:  pick(rng, certificationLevels),
			ProjectType:         pick(rng, projectTypes),
			ProjectCountry:      pick(rng, countries),
			ProjectRegion:       pick(rng, countries) + " Region",
			EnvironmentalImpact: round1(quantity * (2 + rng.Float64()*2)),
			QualityRating:       round1(3 + rng.Float64()*2),
			ForSale:             true,
			Partnership:         i <= 5 && rng.Intn(2) == 1,
			OwnerID:             admin.ID,
			ExpiresAt:           now.AddDate(0, 0, 365+rng.Intn(730)),
		})
		if err != nil {
			return fmt.Errorf("create credit %d: %w", i, err)
		}
		credits = append(credits, c)
	}
	fmt.Printf("created %d hydrogen credits\n", len(credits))

	allocated := 0
	for _, c := range credits {
		if !c.Partnership || allocated >= 3 {
			continue
		}
		_, err := store.CreateAllocation(ctx, partnership.Allocation{
			CreditID:      c.ID,
			PartnerID:     admin.ID,
			Type:          pick(rng, partnershipTypes),
			QuantityKg:    round1(c.QuantityKg * (0.3 + rng.Float64()*0.5)),
			ReservedPrice: round2(c.Price * (0.85 + rng.Float64()*0.1)),
			StartsAt:      now,
			EndsAt:        now.AddDate(0, 0, 90+rng.Intn(275)),
			AutoRenew:     rng.Intn(2) == 1,
			Status:        partnership.StatusActive,
			Terms:         "Standard partnership terms apply",
		})
		if err != nil {
			return fmt.Errorf("create allocation: %w", err)
		}
		allocated++
	}
	fmt.Printf("created %d partnership allocations\n", allocated)

	bidders := credits
	if len(bidders) > 8 {
		bidders = credits[5:8]
	}
	for _, c := range bidders {
		_, err := store.CreateBid(ctx, bid.Bid{
			CreditID:   c.ID,
			UserID:     admin.ID,
			BidPrice:   round2(c.Price * (0.9 + rng.Float64()*0.2)),
			QuantityKg: round1(c.QuantityKg * (0.5 + rng.Float64()*0.5)),
			Type:       bid.TypeBuy,
			Status:     bid.StatusActive,
			Notes:      fmt.Sprintf("Interested in bulk purchase of %s credits", c.ProjectType),
			ExpiresAt:  now.Add(time.Duration(24+rng.Intn(144)) * time.Hour),
		})
		if err != nil {
			return fmt.Errorf("create bid: %w", err)
		}
	}
	fmt.Printf("created %d sample bids\n", len(bidders))

	welcome := []notification.Notification{
		{
			UserID:   admin.ID,
			Title:    "Welcome to HydroChain",
			Message:  "Welcome to the hydrogen credit marketplace! Connect your wallet to start trading verified credits today.",
			Type:     notification.TypeSystem,
			Priority: notification.PriorityNormal,
		},
		{
			UserID:   admin.ID,
			Title:    "New Credit Available",
			Message:  "A new hydrogen credit from Nordic Electrolysis Hub is now available for purchase.",
			Type:     notification.TypeTrade,
			Priority: notification.PriorityNormal,
		},
		{
			UserID:   admin.ID,
			Title:    "Partnership Opportunity",
			Message:  "Corporate bulk partnership available for renewable energy credits.",
			Type:     notification.TypePartnership,
			Priority: notification.PriorityHigh,
		},
	}
	for _, n := range welcome {
		if _, err := store.CreateNotification(ctx, n); err != nil {
			return fmt.Errorf("create notification: %w", err)
		}
	}

	var volumeKg, valueUSD, priceSum float64
	for _, c := range credits {
		priceSum += c.Price
	}
	for _, c := range credits[:min(15, len(credits))] {
		volumeKg += c.QuantityKg
		valueUSD += c.Price * c.QuantityKg
	}
	_, err = store.UpsertDailySnapshot(ctx, analytics.DailySnapshot{
		Date:            now.Truncate(24 * time.Hour),
		CreditsTraded:   0,
		VolumeKg:        round1(volumeKg),
		ValueUSD:        round2(valueUSD),
		AvgPricePerKg:   round2(priceSum / float64(len(credits))),
		ActiveUsers:     1,
		NewPartnerships: allocated,
	})
	if err != nil {
		return fmt.Errorf("upsert snapshot: %w", err)
	}

	fmt.Println("seeding complete")
	return nil
}

func projectName(rng *rand.Rand, i int) string {
	if i <= len(projectNames) {
		return projectNames[i-1]
	}
	if rng.Intn(2) == 1 {
		return fmt.Sprintf("%s Plant in %s", pick(rng, projectTypes), pick(rng, countries))
	}
	return fmt.Sprintf("%s %s Hub", pick(rng, countries), pick(rng, projectTypes))
}

func pick(rng *rand.Rand, options []string) string {
	return options[rng.Intn(len(options))]
}

func round1(v float64) float64 { return float64(int(v*10+0.5)) / 10 }
func round2(v float64) float64 { return float64(int(v*100+0.5)) / 100 }
