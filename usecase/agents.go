package usecase

import (
	"context"
	"sync"

	"skypress/domain/model"
	"skypress/domain/repository"
	"skypress/infrastructure/clients/skyapi"
	"skypress/infrastructure/logger"
)

// AgentConfig decides per task kind whether a logged-in session is reused
// within the batch. Callers must not assume caching either way.
type AgentConfig struct {
	CachePostAgents   bool
	CacheRepostAgents bool
}

// AgentMap obtains and reuses authenticated remote sessions per account for
// the lifetime of one batch. It is the only shared mutable state within a
// batch and is never shared across batches or persisted.
type AgentMap struct {
	accounts repository.IAccount
	social   repository.ISocial
	cfg      AgentConfig

	mu     sync.Mutex
	agents map[string]*model.Session
}

func NewAgentMap(accounts repository.IAccount, social repository.ISocial, cfg AgentConfig) *AgentMap {
	return &AgentMap{
		accounts: accounts,
		social:   social,
		cfg:      cfg,
		agents:   map[string]*model.Session{},
	}
}

// GetOrCreate returns a session for the account. Terminal failures (missing
// credentials, account-level login failures) come back as (nil, nil): the
// violation is recorded once and the task should be dropped. A transient
// failure (outage, credential-store error) comes back as a non-nil error so
// the caller can retry the task later.
func (m *AgentMap) GetOrCreate(ctx context.Context, accountID string, kind model.TaskKind) (*model.Session, error) {
	cacheable := m.cacheable(kind)
	if cacheable {
		m.mu.Lock()
		s, ok := m.agents[accountID]
		m.mu.Unlock()
		if ok {
			if !skyapi.SessionExpired(s) {
				return s, nil
			}
			m.mu.Lock()
			delete(m.agents, accountID)
			m.mu.Unlock()
		}
	}

	creds, err := m.accounts.GetCredentials(ctx, accountID)
	if err != nil {
		logger.GetLogger().WithField("error", err).WithField("accountID", accountID).
			Error("Credential lookup failed")
		return nil, err
	}
	if creds == nil {
		logger.GetLogger().WithField("accountID", accountID).Error("No credentials for account")
		return nil, nil
	}

	session, status, err := m.social.Login(ctx, creds.Identifier, creds.AppSecret)
	if err != nil {
		lg := logger.GetLogger().
			WithField("accountID", accountID).
			WithField("status", status).
			WithField("error", err)
		if status.AccountLevel() {
			lg.Warn("Account-level login failure, recording violation")
			if vErr := m.accounts.RecordViolation(ctx, accountID, status, err.Error()); vErr != nil {
				logger.GetLogger().WithField("error", vErr).Error("Failed to record violation")
			}
			return nil, nil
		}
		lg.Error("Login failed")
		return nil, err
	}

	if cacheable {
		m.mu.Lock()
		m.agents[accountID] = session
		m.mu.Unlock()
	}
	return session, nil
}

func (m *AgentMap) cacheable(kind model.TaskKind) bool {
	switch kind {
	case model.TaskPost:
		return m.cfg.CachePostAgents
	case model.TaskRepost:
		return m.cfg.CacheRepostAgents
	}
	return false
}
