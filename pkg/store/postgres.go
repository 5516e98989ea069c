package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// pgStore implements Store on a pgx pool.
type pgStore struct {
	pool *pgxpool.Pool
	log  *zap.SugaredLogger
}

func NewPostgres(pool *pgxpool.Pool, log *zap.SugaredLogger) Store {
	return &pgStore{pool: pool, log: log}
}

// EnsureSchema creates the tables if missing. Safe to call repeatedly.
//
// Children carry no foreign key to idps: a direct IdP delete leaves its
// children in place (only the account-deletion cascade removes them), and a
// constraint would forbid that.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS accounts (
  id uuid PRIMARY KEY,
  first_name text NOT NULL DEFAULT '',
  last_name text NOT NULL DEFAULT '',
  email text NOT NULL UNIQUE,
  password_hash text NOT NULL DEFAULT '',
  subscriptions text[] NOT NULL DEFAULT '{}',
  login_tokens text[] NOT NULL DEFAULT '{}',
  enrol_token text,
  reset_token text,
  created_at timestamptz NOT NULL DEFAULT NOW(),
  last_seen_at timestamptz
);
CREATE TABLE IF NOT EXISTS idps (
  id uuid PRIMARY KEY,
  account_id uuid,
  name text NOT NULL,
  code text NOT NULL UNIQUE,
  certificate text NOT NULL DEFAULT '',
  private_key text NOT NULL DEFAULT '',
  created_at timestamptz NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idps_account_idx ON idps(account_id);
CREATE TABLE IF NOT EXISTS idp_sps (
  id uuid PRIMARY KEY,
  idp_id uuid NOT NULL,
  name text NOT NULL DEFAULT '',
  kind text NOT NULL DEFAULT 'saml',
  entity_id text NOT NULL DEFAULT '',
  service_url text NOT NULL DEFAULT '',
  callback_url text NOT NULL DEFAULT '',
  logout_url text NOT NULL DEFAULT '',
  logout_callback_url text NOT NULL DEFAULT '',
  oauth2_client_id text NOT NULL DEFAULT '',
  oauth2_client_secret text NOT NULL DEFAULT '',
  oauth2_redirect_uri text NOT NULL DEFAULT '',
  created_at timestamptz NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idp_sps_idp_idx ON idp_sps(idp_id);
CREATE TABLE IF NOT EXISTS idp_users (
  id uuid PRIMARY KEY,
  idp_id uuid NOT NULL,
  first_name text NOT NULL DEFAULT '',
  last_name text NOT NULL DEFAULT '',
  email text NOT NULL DEFAULT '',
  password_hash text NOT NULL DEFAULT '',
  attributes jsonb NOT NULL DEFAULT '{}'::jsonb,
  created_at timestamptz NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idp_users_idp_idx ON idp_users(idp_id);
CREATE TABLE IF NOT EXISTS idp_attributes (
  id uuid PRIMARY KEY,
  idp_id uuid NOT NULL,
  name text NOT NULL DEFAULT '',
  default_value text NOT NULL DEFAULT '',
  saml_mapping text NOT NULL DEFAULT '',
  created_at timestamptz NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idp_attributes_idp_idx ON idp_attributes(idp_id);
CREATE TABLE IF NOT EXISTS saml_requests (
  id uuid PRIMARY KEY,
  idp_id uuid NOT NULL,
  sp_id uuid,
  payload jsonb NOT NULL DEFAULT '{}'::jsonb,
  created_at timestamptz NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS saml_requests_idp_idx ON saml_requests(idp_id, created_at DESC);
CREATE TABLE IF NOT EXISTS oauth_requests (
  id uuid PRIMARY KEY,
  idp_id uuid NOT NULL,
  sp_id uuid,
  payload jsonb NOT NULL DEFAULT '{}'::jsonb,
  created_at timestamptz NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS oauth_requests_idp_idx ON oauth_requests(idp_id, created_at DESC);
`)
	return err
}

// validID guards uuid route params before they reach the driver: a malformed
// id is indistinguishable from an absent document to callers.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func mapErr(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

// ---- accounts

const accountCols = `id, first_name, last_name, email, password_hash, subscriptions,
  login_tokens, COALESCE(enrol_token,''), COALESCE(reset_token,''), created_at,
  COALESCE(last_seen_at, 'epoch'::timestamptz)`

func scanAccount(row pgx.Row) (*Account, error) {
	var a Account
	err := row.Scan(&a.ID, &a.FirstName, &a.LastName, &a.Email, &a.PasswordHash,
		&a.Subscriptions, &a.LoginTokens, &a.EnrolToken, &a.ResetToken,
		&a.CreatedAt, &a.LastSeenAt)
	if err != nil {
		return nil, mapErr(err)
	}
	return &a, nil
}

func (s *pgStore) CreateAccount(ctx context.Context, a *Account) error {
	_, err := s.pool.Exec(ctx, `
        INSERT INTO accounts (id, first_name, last_name, email, password_hash, created_at)
        VALUES ($1, $2, $3, $4, $5, $6)`,
		a.ID, a.FirstName, a.LastName, a.Email, a.PasswordHash, a.CreatedAt)
	return err
}

func (s *pgStore) AccountByID(ctx context.Context, id string) (*Account, error) {
	if !validID(id) {
		return nil, ErrNotFound
	}
	return scanAccount(s.pool.QueryRow(ctx, `SELECT `+accountCols+` FROM accounts WHERE id=$1`, id))
}

func (s *pgStore) AccountByEmail(ctx context.Context, email string) (*Account, error) {
	return scanAccount(s.pool.QueryRow(ctx, `SELECT `+accountCols+` FROM accounts WHERE email=$1`, email))
}

func (s *pgStore) UpdateAccountProfile(ctx context.Context, id, firstName, lastName, email string) error {
	if !validID(id) {
		return ErrNotFound
	}
	_, err := s.pool.Exec(ctx,
		`UPDATE accounts SET first_name=$2, last_name=$3, email=$4 WHERE id=$1`,
		id, firstName, lastName, email)
	return err
}

func (s *pgStore) DeleteAccount(ctx context.Context, id string) error {
	if !validID(id) {
		return ErrNotFound
	}
	_, err := s.pool.Exec(ctx, `DELETE FROM accounts WHERE id=$1`, id)
	return err
}

func (s *pgStore) SetPassword(ctx context.Context, id, hash string, clear TokenPurpose) error {
	if !validID(id) {
		return ErrNotFound
	}
	q := `UPDATE accounts SET password_hash=$2 WHERE id=$1`
	switch clear {
	case PurposeEnrolment:
		q = `UPDATE accounts SET password_hash=$2, enrol_token=NULL WHERE id=$1`
	case PurposePasswordReset:
		q = `UPDATE accounts SET password_hash=$2, reset_token=NULL WHERE id=$1`
	}
	_, err := s.pool.Exec(ctx, q, id, hash)
	return err
}

func (s *pgStore) AddLoginToken(ctx context.Context, id, token string) error {
	if !validID(id) {
		return ErrNotFound
	}
	_, err := s.pool.Exec(ctx, `
        UPDATE accounts SET login_tokens = array_append(login_tokens, $2)
        WHERE id=$1 AND NOT ($2 = ANY(login_tokens))`, id, token)
	return err
}

func (s *pgStore) RemoveLoginToken(ctx context.Context, id, token string) error {
	if !validID(id) {
		return ErrNotFound
	}
	_, err := s.pool.Exec(ctx,
		`UPDATE accounts SET login_tokens = array_remove(login_tokens, $2) WHERE id=$1`, id, token)
	return err
}

func (s *pgStore) AccountByLoginToken(ctx context.Context, id, token string) (*Account, error) {
	if !validID(id) {
		return nil, ErrNotFound
	}
	return scanAccount(s.pool.QueryRow(ctx,
		`SELECT `+accountCols+` FROM accounts WHERE id=$1 AND $2 = ANY(login_tokens)`, id, token))
}

func (s *pgStore) TouchLastSeen(ctx context.Context, id string) error {
	if !validID(id) {
		return ErrNotFound
	}
	_, err := s.pool.Exec(ctx, `UPDATE accounts SET last_seen_at=NOW() WHERE id=$1`, id)
	return err
}

func singleSlotCol(purpose TokenPurpose) string {
	if purpose == PurposePasswordReset {
		return "reset_token"
	}
	return "enrol_token"
}

func (s *pgStore) SetSingleUseToken(ctx context.Context, id string, purpose TokenPurpose, token string) error {
	if !validID(id) {
		return ErrNotFound
	}
	_, err := s.pool.Exec(ctx,
		`UPDATE accounts SET `+singleSlotCol(purpose)+`=$2 WHERE id=$1`, id, token)
	return err
}

func (s *pgStore) AccountBySingleUseToken(ctx context.Context, id string, purpose TokenPurpose, token string) (*Account, error) {
	if !validID(id) {
		return nil, ErrNotFound
	}
	return scanAccount(s.pool.QueryRow(ctx,
		`SELECT `+accountCols+` FROM accounts WHERE id=$1 AND `+singleSlotCol(purpose)+`=$2`, id, token))
}

// ---- idps

const idpCols = `id, COALESCE(account_id::text,''), name, code, certificate, private_key, created_at`

func scanIdP(row pgx.Row) (*IdP, error) {
	var p IdP
	err := row.Scan(&p.ID, &p.AccountID, &p.Name, &p.Code, &p.Certificate, &p.PrivateKey, &p.CreatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	return &p, nil
}

func (s *pgStore) CreateIdP(ctx context.Context, p *IdP) error {
	_, err := s.pool.Exec(ctx, `
        INSERT INTO idps (id, account_id, name, code, certificate, private_key, created_at)
        VALUES ($1, NULLIF($2,'')::uuid, $3, $4, $5, $6, $7)`,
		p.ID, p.AccountID, p.Name, p.Code, p.Certificate, p.PrivateKey, p.CreatedAt)
	return err
}

func (s *pgStore) IdPByID(ctx context.Context, id string) (*IdP, error) {
	if !validID(id) {
		return nil, ErrNotFound
	}
	return scanIdP(s.pool.QueryRow(ctx, `SELECT `+idpCols+` FROM idps WHERE id=$1`, id))
}

func (s *pgStore) CodeInUse(ctx context.Context, code, excludeID string) (bool, error) {
	var n int
	var err error
	if excludeID == "" {
		err = s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM idps WHERE code=$1`, code).Scan(&n)
	} else {
		err = s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM idps WHERE code=$1 AND id<>$2`, code, excludeID).Scan(&n)
	}
	return n > 0, err
}

func (s *pgStore) ListIdPs(ctx context.Context, accountID string, includeIDs []string) ([]IdP, error) {
	include := filterIDs(includeIDs)
	var rows pgx.Rows
	var err error
	if accountID != "" {
		rows, err = s.pool.Query(ctx, `
            SELECT `+idpCols+` FROM idps
            WHERE account_id=$1 OR (account_id IS NULL AND id = ANY($2::uuid[]))
            ORDER BY created_at`, accountID, include)
	} else {
		rows, err = s.pool.Query(ctx, `
            SELECT `+idpCols+` FROM idps
            WHERE account_id IS NULL AND id = ANY($1::uuid[])
            ORDER BY created_at`, include)
	}
	if err != nil {
		return nil, err
	}
	return collectIdPs(rows)
}

func (s *pgStore) IdPsByAccount(ctx context.Context, accountID string) ([]IdP, error) {
	if !validID(accountID) {
		return nil, nil
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+idpCols+` FROM idps WHERE account_id=$1 ORDER BY created_at`, accountID)
	if err != nil {
		return nil, err
	}
	return collectIdPs(rows)
}

func collectIdPs(rows pgx.Rows) ([]IdP, error) {
	defer rows.Close()
	var out []IdP
	for rows.Next() {
		p, err := scanIdP(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

func (s *pgStore) UpdateIdP(ctx context.Context, id, name, code string) error {
	if !validID(id) {
		return ErrNotFound
	}
	_, err := s.pool.Exec(ctx, `UPDATE idps SET name=$2, code=$3 WHERE id=$1`, id, name, code)
	return err
}

func (s *pgStore) DeleteIdP(ctx context.Context, id string) error {
	if !validID(id) {
		return ErrNotFound
	}
	_, err := s.pool.Exec(ctx, `DELETE FROM idps WHERE id=$1`, id)
	return err
}

func (s *pgStore) DeleteIdPsByAccount(ctx context.Context, accountID string) error {
	if !validID(accountID) {
		return nil
	}
	_, err := s.pool.Exec(ctx, `DELETE FROM idps WHERE account_id=$1`, accountID)
	return err
}

// ClaimIdPs is the one place ownership transfer happens. The WHERE clause
// makes the claim conditional on the IdP still being unclaimed, so two
// concurrent logins can never both claim the same IdP.
func (s *pgStore) ClaimIdPs(ctx context.Context, ids []string, accountID string) (int64, error) {
	include := filterIDs(ids)
	if len(include) == 0 || !validID(accountID) {
		return 0, nil
	}
	tag, err := s.pool.Exec(ctx, `
        UPDATE idps SET account_id=$1
        WHERE id = ANY($2::uuid[]) AND account_id IS NULL`, accountID, include)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// filterIDs drops malformed uuids so the ANY($1::uuid[]) cast cannot fail.
func filterIDs(ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if validID(id) {
			out = append(out, id)
		}
	}
	return out
}

// ---- service providers

const spCols = `id, idp_id, name, kind, entity_id, service_url, callback_url,
  logout_url, logout_callback_url, oauth2_client_id, oauth2_client_secret,
  oauth2_redirect_uri, created_at`

func scanSP(row pgx.Row) (*ServiceProvider, error) {
	var sp ServiceProvider
	err := row.Scan(&sp.ID, &sp.IdPID, &sp.Name, &sp.Kind, &sp.EntityID, &sp.ServiceURL,
		&sp.CallbackURL, &sp.LogoutURL, &sp.LogoutCallbackURL, &sp.OAuth2ClientID,
		&sp.OAuth2ClientSecret, &sp.OAuth2RedirectURI, &sp.CreatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	return &sp, nil
}

func (s *pgStore) CreateSP(ctx context.Context, sp *ServiceProvider) error {
	_, err := s.pool.Exec(ctx, `
        INSERT INTO idp_sps (id, idp_id, name, kind, entity_id, service_url, callback_url,
          logout_url, logout_callback_url, oauth2_client_id, oauth2_client_secret,
          oauth2_redirect_uri, created_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`,
		sp.ID, sp.IdPID, sp.Name, sp.Kind, sp.EntityID, sp.ServiceURL, sp.CallbackURL,
		sp.LogoutURL, sp.LogoutCallbackURL, sp.OAuth2ClientID, sp.OAuth2ClientSecret,
		sp.OAuth2RedirectURI, sp.CreatedAt)
	return err
}

func (s *pgStore) SPByID(ctx context.Context, id string) (*ServiceProvider, error) {
	if !validID(id) {
		return nil, ErrNotFound
	}
	return scanSP(s.pool.QueryRow(ctx, `SELECT `+spCols+` FROM idp_sps WHERE id=$1`, id))
}

func (s *pgStore) SPsByIdP(ctx context.Context, idpID string) ([]ServiceProvider, error) {
	if !validID(idpID) {
		return nil, nil
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+spCols+` FROM idp_sps WHERE idp_id=$1 ORDER BY created_at`, idpID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []ServiceProvider
	for rows.Next() {
		sp, err := scanSP(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *sp)
	}
	return out, rows.Err()
}

func (s *pgStore) UpdateSP(ctx context.Context, sp *ServiceProvider) error {
	if !validID(sp.ID) {
		return ErrNotFound
	}
	_, err := s.pool.Exec(ctx, `
        UPDATE idp_sps SET name=$2, entity_id=$3, service_url=$4, callback_url=$5,
          logout_url=$6, logout_callback_url=$7, oauth2_redirect_uri=$8
        WHERE id=$1`,
		sp.ID, sp.Name, sp.EntityID, sp.ServiceURL, sp.CallbackURL,
		sp.LogoutURL, sp.LogoutCallbackURL, sp.OAuth2RedirectURI)
	return err
}

func (s *pgStore) DeleteSP(ctx context.Context, id string) error {
	if !validID(id) {
		return ErrNotFound
	}
	_, err := s.pool.Exec(ctx, `DELETE FROM idp_sps WHERE id=$1`, id)
	return err
}

func (s *pgStore) DeleteSPsByIdP(ctx context.Context, idpID string) error {
	if !validID(idpID) {
		return nil
	}
	_, err := s.pool.Exec(ctx, `DELETE FROM idp_sps WHERE idp_id=$1`, idpID)
	return err
}

// ---- idp users

const idpUserCols = `id, idp_id, first_name, last_name, email, password_hash, attributes, created_at`

func scanIdPUser(row pgx.Row) (*IdPUser, error) {
	var u IdPUser
	var attrs []byte
	err := row.Scan(&u.ID, &u.IdPID, &u.FirstName, &u.LastName, &u.Email, &u.PasswordHash, &attrs, &u.CreatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	if len(attrs) > 0 {
		_ = json.Unmarshal(attrs, &u.Attributes)
	}
	if u.Attributes == nil {
		u.Attributes = map[string]string{}
	}
	return &u, nil
}

func (s *pgStore) CreateIdPUser(ctx context.Context, u *IdPUser) error {
	attrs, err := json.Marshal(orEmpty(u.Attributes))
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
        INSERT INTO idp_users (id, idp_id, first_name, last_name, email, password_hash, attributes, created_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		u.ID, u.IdPID, u.FirstName, u.LastName, u.Email, u.PasswordHash, attrs, u.CreatedAt)
	return err
}

func (s *pgStore) IdPUserByID(ctx context.Context, id string) (*IdPUser, error) {
	if !validID(id) {
		return nil, ErrNotFound
	}
	return scanIdPUser(s.pool.QueryRow(ctx, `SELECT `+idpUserCols+` FROM idp_users WHERE id=$1`, id))
}

func (s *pgStore) IdPUsersByIdP(ctx context.Context, idpID string) ([]IdPUser, error) {
	if !validID(idpID) {
		return nil, nil
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+idpUserCols+` FROM idp_users WHERE idp_id=$1 ORDER BY created_at`, idpID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []IdPUser
	for rows.Next() {
		u, err := scanIdPUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *u)
	}
	return out, rows.Err()
}

func (s *pgStore) UpdateIdPUser(ctx context.Context, u *IdPUser) error {
	if !validID(u.ID) {
		return ErrNotFound
	}
	attrs, err := json.Marshal(orEmpty(u.Attributes))
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
        UPDATE idp_users SET first_name=$2, last_name=$3, email=$4, password_hash=$5, attributes=$6
        WHERE id=$1`,
		u.ID, u.FirstName, u.LastName, u.Email, u.PasswordHash, attrs)
	return err
}

func (s *pgStore) DeleteIdPUser(ctx context.Context, id string) error {
	if !validID(id) {
		return ErrNotFound
	}
	_, err := s.pool.Exec(ctx, `DELETE FROM idp_users WHERE id=$1`, id)
	return err
}

func (s *pgStore) DeleteIdPUsersByIdP(ctx context.Context, idpID string) error {
	if !validID(idpID) {
		return nil
	}
	_, err := s.pool.Exec(ctx, `DELETE FROM idp_users WHERE idp_id=$1`, idpID)
	return err
}

func orEmpty(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return m
}

// ---- attributes

const attrCols = `id, idp_id, name, default_value, saml_mapping, created_at`

func scanAttribute(row pgx.Row) (*Attribute, error) {
	var at Attribute
	err := row.Scan(&at.ID, &at.IdPID, &at.Name, &at.DefaultValue, &at.SAMLMapping, &at.CreatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	return &at, nil
}

func (s *pgStore) CreateAttribute(ctx context.Context, at *Attribute) error {
	_, err := s.pool.Exec(ctx, `
        INSERT INTO idp_attributes (id, idp_id, name, default_value, saml_mapping, created_at)
        VALUES ($1,$2,$3,$4,$5,$6)`,
		at.ID, at.IdPID, at.Name, at.DefaultValue, at.SAMLMapping, at.CreatedAt)
	return err
}

func (s *pgStore) AttributeByID(ctx context.Context, id string) (*Attribute, error) {
	if !validID(id) {
		return nil, ErrNotFound
	}
	return scanAttribute(s.pool.QueryRow(ctx, `SELECT `+attrCols+` FROM idp_attributes WHERE id=$1`, id))
}

func (s *pgStore) AttributesByIdP(ctx context.Context, idpID string) ([]Attribute, error) {
	if !validID(idpID) {
		return nil, nil
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+attrCols+` FROM idp_attributes WHERE idp_id=$1 ORDER BY created_at`, idpID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Attribute
	for rows.Next() {
		at, err := scanAttribute(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *at)
	}
	return out, rows.Err()
}

func (s *pgStore) UpdateAttribute(ctx context.Context, at *Attribute) error {
	if !validID(at.ID) {
		return ErrNotFound
	}
	_, err := s.pool.Exec(ctx, `
        UPDATE idp_attributes SET name=$2, default_value=$3, saml_mapping=$4 WHERE id=$1`,
		at.ID, at.Name, at.DefaultValue, at.SAMLMapping)
	return err
}

func (s *pgStore) DeleteAttribute(ctx context.Context, id string) error {
	if !validID(id) {
		return ErrNotFound
	}
	_, err := s.pool.Exec(ctx, `DELETE FROM idp_attributes WHERE id=$1`, id)
	return err
}

func (s *pgStore) DeleteAttributesByIdP(ctx context.Context, idpID string) error {
	if !validID(idpID) {
		return nil
	}
	_, err := s.pool.Exec(ctx, `DELETE FROM idp_attributes WHERE idp_id=$1`, idpID)
	return err
}

// ---- access logs

func (s *pgStore) InsertSAMLLog(ctx context.Context, l *AccessLog) error {
	return s.insertLog(ctx, "saml_requests", l)
}

func (s *pgStore) InsertOAuthLog(ctx context.Context, l *AccessLog) error {
	return s.insertLog(ctx, "oauth_requests", l)
}

func (s *pgStore) insertLog(ctx context.Context, table string, l *AccessLog) error {
	payload, err := json.Marshal(l.Payload)
	if err != nil {
		return err
	}
	if l.CreatedAt.IsZero() {
		l.CreatedAt = time.Now().UTC()
	}
	_, err = s.pool.Exec(ctx, `
        INSERT INTO `+table+` (id, idp_id, sp_id, payload, created_at)
        VALUES ($1,$2,NULLIF($3,'')::uuid,$4,$5)`,
		l.ID, l.IdPID, l.SPID, payload, l.CreatedAt)
	return err
}

func (s *pgStore) SAMLLogs(ctx context.Context, idpID string, limit int) ([]AccessLog, error) {
	return s.queryLogs(ctx, "saml_requests", idpID, limit)
}

func (s *pgStore) OAuthLogs(ctx context.Context, idpID string, limit int) ([]AccessLog, error) {
	return s.queryLogs(ctx, "oauth_requests", idpID, limit)
}

func (s *pgStore) queryLogs(ctx context.Context, table, idpID string, limit int) ([]AccessLog, error) {
	if !validID(idpID) {
		return nil, nil
	}
	rows, err := s.pool.Query(ctx, `
        SELECT id, idp_id, COALESCE(sp_id::text,''), payload, created_at
        FROM `+table+` WHERE idp_id=$1 ORDER BY created_at DESC LIMIT $2`, idpID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []AccessLog
	for rows.Next() {
		var l AccessLog
		var payload []byte
		if err := rows.Scan(&l.ID, &l.IdPID, &l.SPID, &payload, &l.CreatedAt); err != nil {
			return nil, err
		}
		if len(payload) > 0 {
			_ = json.Unmarshal(payload, &l.Payload)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}
