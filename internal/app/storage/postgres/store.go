package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/hydrochain/marketplace/internal/app/domain/analytics"
	"github.com/hydrochain/marketplace/internal/app/domain/bid"
	"github.com/hydrochain/marketplace/internal/app/domain/credit"
	"github.com/hydrochain/marketplace/internal/app/domain/notification"
	"github.com/hydrochain/marketplace/internal/app/domain/partnership"
	"github.com/hydrochain/marketplace/internal/app/domain/trade"
	"github.com/hydrochain/marketplace/internal/app/domain/user"
	"github.com/hydrochain/marketplace/internal/app/storage"
)

// Store implements the storage interfaces backed by PostgreSQL.
type Store struct {
	db *sql.DB
}

var _ storage.UserStore = (*Store)(nil)
var _ storage.CreditStore = (*Store)(nil)
var _ storage.TransactionStore = (*Store)(nil)
var _ storage.BidStore = (*Store)(nil)
var _ storage.NotificationStore = (*Store)(nil)
var _ storage.PartnershipStore = (*Store)(nil)
var _ storage.AnalyticsStore = (*Store)(nil)

// New creates a Store using the provided database handle.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}

func fromNullTime(t sql.NullTime) time.Time {
	if t.Valid {
		return t.Time
	}
	return time.Time{}
}

// --- UserStore --------------------------------------------------------------

func (s *Store) CreateUser(ctx context.Context, u user.User) (user.User, error) {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	u.WalletAddress = user.NormalizeWallet(u.WalletAddress)
	now := time.Now().UTC()
	if u.RegisteredAt.IsZero() {
		u.RegisteredAt = now
	}
	u.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO market_users (id, username, wallet_address, email, company_name,
			is_verified, is_partner, verification_level, total_offsets_kg,
			trading_volume, reputation_score, registered_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`, u.ID, u.Username, u.WalletAddress, u.Email, u.CompanyName,
		u.IsVerified, u.IsPartner, u.VerificationLevel, u.TotalOffsetsKg,
		u.TradingVolume, u.ReputationScore, u.RegisteredAt, u.UpdatedAt)
	if err != nil {
		return user.User{}, err
	}
	return u, nil
}

func (s *Store) UpdateUser(ctx context.Context, u user.User) (user.User, error) {
	existing, err := s.GetUser(ctx, u.ID)
	if err != nil {
		return user.User{}, err
	}

	u.WalletAddress = user.NormalizeWallet(u.WalletAddress)
	u.RegisteredAt = existing.RegisteredAt
	u.UpdatedAt = time.Now().UTC()

	result, err := s.db.ExecContext(ctx, `
		UPDATE market_users
		SET username = $2, wallet_address = $3, email = $4, company_name = $5,
			is_verified = $6, is_partner = $7, verification_level = $8,
			total_offsets_kg = $9, trading_volume = $10, reputation_score = $11,
			updated_at = $12
		WHERE id = $1
	`, u.ID, u.Username, u.WalletAddress, u.Email, u.CompanyName,
		u.IsVerified, u.IsPartner, u.VerificationLevel,
		u.TotalOffsetsKg, u.TradingVolume, u.ReputationScore, u.UpdatedAt)
	if err != nil {
		return user.User{}, err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return user.User{}, sql.ErrNoRows
	}
	return u, nil
}

const userColumns = `id, username, wallet_address, COALESCE(email, ''), COALESCE(company_name, ''),
	is_verified, is_partner, verification_level, total_offsets_kg,
	trading_volume, reputation_score, registered_at, updated_at`

func scanUser(row interface{ Scan(...any) error }) (user.User, error) {
	var u user.User
	err := row.Scan(&u.ID, &u.Username, &u.WalletAddress, &u.Email, &u.CompanyName,
		&u.IsVerified, &u.IsPartner, &u.VerificationLevel, &u.TotalOffsetsKg,
		&u.TradingVolume, &u.ReputationScore, &u.RegisteredAt, &u.UpdatedAt)
	return u, err
}

func (s *Store) GetUser(ctx context.Context, id string) (user.User, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+userColumns+`
		FROM market_users
		WHERE id = $1
	`, id)
	return scanUser(row)
}

func (s *Store) GetUserByWallet(ctx context.Context, wallet string) (user.User, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+userColumns+`
		FROM market_users
		WHERE wallet_address = $1
	`, user.NormalizeWallet(wallet))
	return scanUser(row)
}

func (s *Store) ListUsers(ctx context.Context) ([]user.User, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+userColumns+`
		FROM market_users
		ORDER BY registered_at
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []user.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, u)
	}
	return result, rows.Err()
}

// --- CreditStore ------------------------------------------------------------

const creditColumns = `id, token_id, project_name, quantity_kg, price, min_bid_price,
	vintage_year, certification, certification_level, project_type,
	COALESCE(project_country, ''), COALESCE(project_region, ''),
	environmental_impact, quality_rating, for_sale, retired, partnership,
	owner_id, issued_at, retired_at, expires_at, updated_at`

func scanCredit(row interface{ Scan(...any) error }) (credit.Credit, error) {
	var (
		c         credit.Credit
		retiredAt sql.NullTime
		expiresAt sql.NullTime
	)
	err := row.Scan(&c.ID, &c.TokenID, &c.ProjectName, &c.QuantityKg, &c.Price, &c.MinBidPrice,
		&c.VintageYear, &c.Certification, &c.CertificationLevel, &c.ProjectType,
		&c.ProjectCountry, &c.ProjectRegion,
		&c.EnvironmentalImpact, &c.QualityRating, &c.ForSale, &c.Retired, &c.Partnership,
		&c.OwnerID, &c.IssuedAt, &retiredAt, &expiresAt, &c.UpdatedAt)
	c.RetiredAt = fromNullTime(retiredAt)
	c.ExpiresAt = fromNullTime(expiresAt)
	return c, err
}

func (s *Store) CreateCredit(ctx context.Context, c credit.Credit) (credit.Credit, error) {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if c.IssuedAt.IsZero() {
		c.IssuedAt = now
	}
	c.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO market_credits (id, token_id, project_name, quantity_kg, price,
			min_bid_price, vintage_year, certification, certification_level,
			project_type, project_country, project_region, environmental_impact,
			quality_rating, for_sale, retired, partnership, owner_id,
			issued_at, retired_at, expires_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14,
			$15, $16, $17, $18, $19, $20, $21, $22)
	`, c.ID, c.TokenID, c.ProjectName, c.QuantityKg, c.Price,
		c.MinBidPrice, c.VintageYear, c.Certification, c.CertificationLevel,
		c.ProjectType, c.ProjectCountry, c.ProjectRegion, c.EnvironmentalImpact,
		c.QualityRating, c.ForSale, c.Retired, c.Partnership, c.OwnerID,
		c.IssuedAt, nullTime(c.RetiredAt), nullTime(c.ExpiresAt), c.UpdatedAt)
	if err != nil {
		return credit.Credit{}, err
	}
	return c, nil
}

func (s *Store) UpdateCredit(ctx context.Context, c credit.Credit) (credit.Credit, error) {
	existing, err := s.GetCredit(ctx, c.ID)
	if err != nil {
		return credit.Credit{}, err
	}

	c.IssuedAt = existing.IssuedAt
	c.UpdatedAt = time.Now().UTC()

	result, err := s.db.ExecContext(ctx, `
		UPDATE market_credits
		SET token_id = $2, project_name = $3, quantity_kg = $4, price = $5,
			min_bid_price = $6, vintage_year = $7, certification = $8,
			certification_level = $9, project_type = $10, project_country = $11,
			project_region = $12, environmental_impact = $13, quality_rating = $14,
			for_sale = $15, retired = $16, partnership = $17, owner_id = $18,
			retired_at = $19, expires_at = $20, updated_at = $21
		WHERE id = $1
	`, c.ID, c.TokenID, c.ProjectName, c.QuantityKg, c.Price,
		c.MinBidPrice, c.VintageYear, c.Certification,
		c.CertificationLevel, c.ProjectType, c.ProjectCountry,
		c.ProjectRegion, c.EnvironmentalImpact, c.QualityRating,
		c.ForSale, c.Retired, c.Partnership, c.OwnerID,
		nullTime(c.RetiredAt), nullTime(c.ExpiresAt), c.UpdatedAt)
	if err != nil {
		return credit.Credit{}, err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return credit.Credit{}, sql.ErrNoRows
	}
	return c, nil
}

func (s *Store) GetCredit(ctx context.Context, id string) (credit.Credit, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+creditColumns+`
		FROM market_credits
		WHERE id = $1
	`, id)
	return scanCredit(row)
}

func (s *Store) ListCredits(ctx context.Context, filter storage.CreditFilter) ([]credit.Credit, error) {
	forSale := boolFilter(filter.ForSale)
	retired := boolFilter(filter.Retired)
	partner := boolFilter(filter.Partnership)

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+creditColumns+`
		FROM market_credits
		WHERE ($1 = '' OR owner_id = $1)
		  AND ($2 = -1 OR for_sale = ($2 = 1))
		  AND ($3 = -1 OR retired = ($3 = 1))
		  AND ($4 = -1 OR partnership = ($4 = 1))
		ORDER BY issued_at
	`, filter.OwnerID, forSale, retired, partner)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []credit.Credit
	for rows.Next() {
		c, err := scanCredit(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, c)
	}
	return result, rows.Err()
}

func boolFilter(b *bool) int {
	switch {
	case b == nil:
		return -1
	case *b:
		return 1
	default:
		return 0
	}
}

func (s *Store) CountRetiredCredits(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM market_credits WHERE retired
	`).Scan(&count)
	return count, err
}

func (s *Store) CountDistinctProjects(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(DISTINCT LOWER(project_name)) FROM market_credits
	`).Scan(&count)
	return count, err
}

// --- TransactionStore -------------------------------------------------------

const transactionColumns = `id, credit_id, buyer_id, seller_id, price, quantity_kg,
	tx_type, fees, status, COALESCE(tx_hash, ''), COALESCE(notes, ''),
	created_at, updated_at`

func scanTransaction(row interface{ Scan(...any) error }) (trade.Transaction, error) {
	var tx trade.Transaction
	err := row.Scan(&tx.ID, &tx.CreditID, &tx.BuyerID, &tx.SellerID, &tx.Price, &tx.QuantityKg,
		&tx.Type, &tx.Fees, &tx.Status, &tx.TxHash, &tx.Notes,
		&tx.CreatedAt, &tx.UpdatedAt)
	return tx, err
}

func (s *Store) CreateTransaction(ctx context.Context, tx trade.Transaction) (trade.Transaction, error) {
	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	tx.CreatedAt = now
	tx.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO market_transactions (id, credit_id, buyer_id, seller_id, price,
			quantity_kg, tx_type, fees, status, tx_hash, notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`, tx.ID, tx.CreditID, tx.BuyerID, tx.SellerID, tx.Price,
		tx.QuantityKg, tx.Type, tx.Fees, tx.Status, tx.TxHash, tx.Notes,
		tx.CreatedAt, tx.UpdatedAt)
	if err != nil {
		return trade.Transaction{}, err
	}
	return tx, nil
}

func (s *Store) GetTransaction(ctx context.Context, id string) (trade.Transaction, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+transactionColumns+`
		FROM market_transactions
		WHERE id = $1
	`, id)
	return scanTransaction(row)
}

func (s *Store) ListTransactionsByUser(ctx context.Context, userID string, limit int) ([]trade.Transaction, error) {
	if limit <= 0 {
		limit = 1000
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+transactionColumns+`
		FROM market_transactions
		WHERE buyer_id = $1 OR seller_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []trade.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, tx)
	}
	return result, rows.Err()
}

func (s *Store) ListTransactionsBetween(ctx context.Context, from, to time.Time) ([]trade.Transaction, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+transactionColumns+`
		FROM market_transactions
		WHERE created_at >= $1 AND created_at < $2
		ORDER BY created_at
	`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []trade.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, tx)
	}
	return result, rows.Err()
}

// --- BidStore ---------------------------------------------------------------

const bidColumns = `id, credit_id, user_id, bid_price, quantity_kg, bid_type, status,
	COALESCE(notes, ''), expires_at, accepted_at, created_at, updated_at`

func scanBid(row interface{ Scan(...any) error }) (bid.Bid, error) {
	var (
		b          bid.Bid
		acceptedAt sql.NullTime
	)
	err := row.Scan(&b.ID, &b.CreditID, &b.UserID, &b.BidPrice, &b.QuantityKg, &b.Type, &b.Status,
		&b.Notes, &b.ExpiresAt, &acceptedAt, &b.CreatedAt, &b.UpdatedAt)
	b.AcceptedAt = fromNullTime(acceptedAt)
	return b, err
}

func (s *Store) CreateBid(ctx context.Context, b bid.Bid) (bid.Bid, error) {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	b.CreatedAt = now
	b.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO market_bids (id, credit_id, user_id, bid_price, quantity_kg,
			bid_type, status, notes, expires_at, accepted_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`, b.ID, b.CreditID, b.UserID, b.BidPrice, b.QuantityKg,
		b.Type, b.Status, b.Notes, b.ExpiresAt, nullTime(b.AcceptedAt),
		b.CreatedAt, b.UpdatedAt)
	if err != nil {
		return bid.Bid{}, err
	}
	return b, nil
}

func (s *Store) UpdateBid(ctx context.Context, b bid.Bid) (bid.Bid, error) {
	existing, err := s.GetBid(ctx, b.ID)
	if err != nil {
		return bid.Bid{}, err
	}

	b.CreatedAt = existing.CreatedAt
	if b.AcceptedAt.IsZero() {
		b.AcceptedAt = existing.AcceptedAt
	}
	b.UpdatedAt = time.Now().UTC()

	result, err := s.db.ExecContext(ctx, `
		UPDATE market_bids
		SET bid_price = $2, quantity_kg = $3, bid_type = $4, status = $5,
			notes = $6, expires_at = $7, accepted_at = $8, updated_at = $9
		WHERE id = $1
	`, b.ID, b.BidPrice, b.QuantityKg, b.Type, b.Status,
		b.Notes, b.ExpiresAt, nullTime(b.AcceptedAt), b.UpdatedAt)
	if err != nil {
		return bid.Bid{}, err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return bid.Bid{}, sql.ErrNoRows
	}
	return b, nil
}

func (s *Store) GetBid(ctx context.Context, id string) (bid.Bid, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+bidColumns+`
		FROM market_bids
		WHERE id = $1
	`, id)
	return scanBid(row)
}

func (s *Store) ListBidsByCredit(ctx context.Context, creditID string) ([]bid.Bid, error) {
	return s.listBids(ctx, `credit_id = $1`, creditID)
}

func (s *Store) ListBidsByUser(ctx context.Context, userID string) ([]bid.Bid, error) {
	return s.listBids(ctx, `user_id = $1`, userID)
}

func (s *Store) listBids(ctx context.Context, where string, arg any) ([]bid.Bid, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+bidColumns+`
		FROM market_bids
		WHERE `+where+`
		ORDER BY created_at
	`, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []bid.Bid
	for rows.Next() {
		b, err := scanBid(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, b)
	}
	return result, rows.Err()
}

func (s *Store) ListExpiredActiveBids(ctx context.Context, now time.Time) ([]bid.Bid, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+bidColumns+`
		FROM market_bids
		WHERE status = 'active' AND expires_at < $1
	`, now.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []bid.Bid
	for rows.Next() {
		b, err := scanBid(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, b)
	}
	return result, rows.Err()
}

// --- NotificationStore ------------------------------------------------------

const notificationColumns = `id, user_id, title, message, notification_type, priority,
	read, COALESCE(action_url, ''), COALESCE(extra, ''), created_at, updated_at`

func scanNotification(row interface{ Scan(...any) error }) (notification.Notification, error) {
	var n notification.Notification
	err := row.Scan(&n.ID, &n.UserID, &n.Title, &n.Message, &n.Type, &n.Priority,
		&n.Read, &n.ActionURL, &n.Extra, &n.CreatedAt, &n.UpdatedAt)
	return n, err
}

func (s *Store) CreateNotification(ctx context.Context, n notification.Notification) (notification.Notification, error) {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	n.CreatedAt = now
	n.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO market_notifications (id, user_id, title, message,
			notification_type, priority, read, action_url, extra, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, n.ID, n.UserID, n.Title, n.Message,
		n.Type, n.Priority, n.Read, n.ActionURL, n.Extra, n.CreatedAt, n.UpdatedAt)
	if err != nil {
		return notification.Notification{}, err
	}
	return n, nil
}

func (s *Store) UpdateNotification(ctx context.Context, n notification.Notification) (notification.Notification, error) {
	existing, err := s.GetNotification(ctx, n.ID)
	if err != nil {
		return notification.Notification{}, err
	}

	n.CreatedAt = existing.CreatedAt
	n.UpdatedAt = time.Now().UTC()

	result, err := s.db.ExecContext(ctx, `
		UPDATE market_notifications
		SET title = $2, message = $3, notification_type = $4, priority = $5,
			read = $6, action_url = $7, extra = $8, updated_at = $9
		WHERE id = $1
	`, n.ID, n.Title, n.Message, n.Type, n.Priority,
		n.Read, n.ActionURL, n.Extra, n.UpdatedAt)
	if err != nil {
		return notification.Notification{}, err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return notification.Notification{}, sql.ErrNoRows
	}
	return n, nil
}

func (s *Store) GetNotification(ctx context.Context, id string) (notification.Notification, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+notificationColumns+`
		FROM market_notifications
		WHERE id = $1
	`, id)
	return scanNotification(row)
}

func (s *Store) ListNotifications(ctx context.Context, userID string, unreadOnly bool, limit int) ([]notification.Notification, error) {
	if limit <= 0 {
		limit = 1000
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+notificationColumns+`
		FROM market_notifications
		WHERE user_id = $1 AND (NOT $2 OR NOT read)
		ORDER BY created_at DESC
		LIMIT $3
	`, userID, unreadOnly, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []notification.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, n)
	}
	return result, rows.Err()
}

// --- PartnershipStore -------------------------------------------------------

const allocationColumns = `id, credit_id, partner_id, partnership_type, quantity_kg,
	reserved_price, starts_at, ends_at, auto_renew, status, COALESCE(terms, ''),
	created_at, updated_at`

func scanAllocation(row interface{ Scan(...any) error }) (partnership.Allocation, error) {
	var a partnership.Allocation
	err := row.Scan(&a.ID, &a.CreditID, &a.PartnerID, &a.Type, &a.QuantityKg,
		&a.ReservedPrice, &a.StartsAt, &a.EndsAt, &a.AutoRenew, &a.Status, &a.Terms,
		&a.CreatedAt, &a.UpdatedAt)
	return a, err
}

func (s *Store) CreateAllocation(ctx context.Context, a partnership.Allocation) (partnership.Allocation, error) {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	a.CreatedAt = now
	a.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO market_partnerships (id, credit_id, partner_id, partnership_type,
			quantity_kg, reserved_price, starts_at, ends_at, auto_renew, status,
			terms, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`, a.ID, a.CreditID, a.PartnerID, a.Type,
		a.QuantityKg, a.ReservedPrice, a.StartsAt, a.EndsAt, a.AutoRenew, a.Status,
		a.Terms, a.CreatedAt, a.UpdatedAt)
	if err != nil {
		return partnership.Allocation{}, err
	}
	return a, nil
}

func (s *Store) UpdateAllocation(ctx context.Context, a partnership.Allocation) (partnership.Allocation, error) {
	existing, err := s.GetAllocation(ctx, a.ID)
	if err != nil {
		return partnership.Allocation{}, err
	}

	a.CreatedAt = existing.CreatedAt
	a.UpdatedAt = time.Now().UTC()

	result, err := s.db.ExecContext(ctx, `
		UPDATE market_partnerships
		SET partnership_type = $2, quantity_kg = $3, reserved_price = $4,
			starts_at = $5, ends_at = $6, auto_renew = $7, status = $8,
			terms = $9, updated_at = $10
		WHERE id = $1
	`, a.ID, a.Type, a.QuantityKg, a.ReservedPrice,
		a.StartsAt, a.EndsAt, a.AutoRenew, a.Status, a.Terms, a.UpdatedAt)
	if err != nil {
		return partnership.Allocation{}, err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return partnership.Allocation{}, sql.ErrNoRows
	}
	return a, nil
}

func (s *Store) GetAllocation(ctx context.Context, id string) (partnership.Allocation, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+allocationColumns+`
		FROM market_partnerships
		WHERE id = $1
	`, id)
	return scanAllocation(row)
}

func (s *Store) ListAllocationsByPartner(ctx context.Context, partnerID, status string) ([]partnership.Allocation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+allocationColumns+`
		FROM market_partnerships
		WHERE partner_id = $1 AND ($2 = '' OR status = $2)
		ORDER BY created_at
	`, partnerID, status)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []partnership.Allocation
	for rows.Next() {
		a, err := scanAllocation(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, a)
	}
	return result, rows.Err()
}

func (s *Store) ListExpiredActiveAllocations(ctx context.Context, now time.Time) ([]partnership.Allocation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+allocationColumns+`
		FROM market_partnerships
		WHERE status = 'active' AND ends_at < $1
	`, now.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []partnership.Allocation
	for rows.Next() {
		a, err := scanAllocation(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, a)
	}
	return result, rows.Err()
}

// --- AnalyticsStore ---------------------------------------------------------

func (s *Store) UpsertDailySnapshot(ctx context.Context, snap analytics.DailySnapshot) (analytics.DailySnapshot, error) {
	if snap.ID == "" {
		snap.ID = uuid.NewString()
	}
	if snap.CreatedAt.IsZero() {
		snap.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO market_daily_snapshots (id, snapshot_date, credits_traded,
			volume_kg, value_usd, avg_price_per_kg, active_users,
			new_partnerships, volatility, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (snapshot_date) DO UPDATE SET
			credits_traded = EXCLUDED.credits_traded,
			volume_kg = EXCLUDED.volume_kg,
			value_usd = EXCLUDED.value_usd,
			avg_price_per_kg = EXCLUDED.avg_price_per_kg,
			active_users = EXCLUDED.active_users,
			new_partnerships = EXCLUDED.new_partnerships,
			volatility = EXCLUDED.volatility
	`, snap.ID, snap.Date.UTC().Format("2006-01-02"), snap.CreditsTraded,
		snap.VolumeKg, snap.ValueUSD, snap.AvgPricePerKg, snap.ActiveUsers,
		snap.NewPartnerships, snap.Volatility, snap.CreatedAt)
	if err != nil {
		return analytics.DailySnapshot{}, err
	}
	return snap, nil
}

func (s *Store) ListDailySnapshots(ctx context.Context, limit int) ([]analytics.DailySnapshot, error) {
	if limit <= 0 {
		limit = 90
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, snapshot_date, credits_traded, volume_kg, value_usd,
			avg_price_per_kg, active_users, new_partnerships, volatility, created_at
		FROM market_daily_snapshots
		ORDER BY snapshot_date DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []analytics.DailySnapshot
	for rows.Next() {
		var snap analytics.DailySnapshot
		if err := rows.Scan(&snap.ID, &snap.Date, &snap.CreditsTraded, &snap.VolumeKg,
			&snap.ValueUSD, &snap.AvgPricePerKg, &snap.ActiveUsers,
			&snap.NewPartnerships, &snap.Volatility, &snap.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, snap)
	}
	return result, rows.Err()
}
