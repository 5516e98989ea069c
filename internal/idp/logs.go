package idp

import (
	"context"

	"ssoforge/pkg/store"
)

// logLimit matches the dashboard's page size: the newest 30 entries.
const logLimit = 30

const redactedMarker = "REDACTED"

// SAMLLogs returns recent SAML traffic for the IdP with the SP name joined
// in. The assertion signing key, when present in a payload, is redacted
// before the entry leaves the server; clients never see it.
func (s *Service) SAMLLogs(ctx context.Context, caller *store.Account, idpID string) ([]store.AccessLog, error) {
	p, err := s.loadManaged(ctx, caller, idpID, "access")
	if err != nil {
		return nil, err
	}
	logs, err := s.store.SAMLLogs(ctx, p.ID, logLimit)
	if err != nil {
		return nil, err
	}
	for i := range logs {
		redactAssertionKey(logs[i].Payload)
	}
	if err := s.joinSPNames(ctx, p.ID, logs); err != nil {
		return nil, err
	}
	return logs, nil
}

// OAuthLogs returns recent OAuth2 traffic. These payloads never carry an
// assertion key, so they pass through with only the SP-name join applied.
func (s *Service) OAuthLogs(ctx context.Context, caller *store.Account, idpID string) ([]store.AccessLog, error) {
	p, err := s.loadManaged(ctx, caller, idpID, "access")
	if err != nil {
		return nil, err
	}
	logs, err := s.store.OAuthLogs(ctx, p.ID, logLimit)
	if err != nil {
		return nil, err
	}
	if err := s.joinSPNames(ctx, p.ID, logs); err != nil {
		return nil, err
	}
	return logs, nil
}

// redactAssertionKey replaces payload.assertion.key in place.
func redactAssertionKey(payload map[string]any) {
	assertion, ok := payload["assertion"].(map[string]any)
	if !ok {
		return
	}
	if _, ok := assertion["key"]; ok {
		assertion["key"] = redactedMarker
	}
}

func (s *Service) joinSPNames(ctx context.Context, idpID string, logs []store.AccessLog) error {
	if len(logs) == 0 {
		return nil
	}
	sps, err := s.store.SPsByIdP(ctx, idpID)
	if err != nil {
		return err
	}
	names := make(map[string]string, len(sps))
	for _, sp := range sps {
		names[sp.ID] = sp.Name
	}
	for i := range logs {
		logs[i].SPName = names[logs[i].SPID]
	}
	return nil
}
