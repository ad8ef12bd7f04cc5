package domain

import (
	"errors"
	"testing"
	"time"
)

func TestVerificationRecord_Validate(t *testing.T) {
	now := time.Now()
	answer := "🐱"

	tests := []struct {
		name    string
		rec     VerificationRecord
		wantErr bool
	}{
		{
			name: "unstarted clean",
			rec:  VerificationRecord{State: StateUnstarted},
		},
		{
			name:    "unstarted with challenge",
			rec:     VerificationRecord{State: StateUnstarted, ChallengeAnswer: &answer},
			wantErr: true,
		},
		{
			name: "awaiting agreement clean",
			rec:  VerificationRecord{State: StateAwaitingAgreement},
		},
		{
			name:    "awaiting agreement with verified_at",
			rec:     VerificationRecord{State: StateAwaitingAgreement, VerifiedAt: &now},
			wantErr: true,
		},
		{
			name: "awaiting captcha with challenge",
			rec: VerificationRecord{
				State:             StateAwaitingCaptcha,
				ChallengeAnswer:   &answer,
				ChallengeIssuedAt: &now,
			},
		},
		{
			name:    "awaiting captcha without challenge",
			rec:     VerificationRecord{State: StateAwaitingCaptcha},
			wantErr: true,
		},
		{
			name:    "awaiting captcha with answer but no issue time",
			rec:     VerificationRecord{State: StateAwaitingCaptcha, ChallengeAnswer: &answer},
			wantErr: true,
		},
		{
			name: "verified clean",
			rec:  VerificationRecord{State: StateVerified, VerifiedAt: &now},
		},
		{
			name:    "verified without verified_at",
			rec:     VerificationRecord{State: StateVerified},
			wantErr: true,
		},
		{
			name: "verified with leftover challenge",
			rec: VerificationRecord{
				State:             StateVerified,
				VerifiedAt:        &now,
				ChallengeAnswer:   &answer,
				ChallengeIssuedAt: &now,
			},
			wantErr: true,
		},
		{
			name:    "verified with leftover cooldown",
			rec:     VerificationRecord{State: StateVerified, VerifiedAt: &now, CooldownUntil: &now},
			wantErr: true,
		},
		{
			name: "blocked clean",
			rec:  VerificationRecord{State: StateBlocked},
		},
		{
			name:    "unknown state",
			rec:     VerificationRecord{State: "limbo"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.rec.Validate()
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidRecordShape) {
					t.Errorf("Validate() = %v, want ErrInvalidRecordShape", err)
				}
			} else if err != nil {
				t.Errorf("Validate() = %v, want nil", err)
			}
		})
	}
}

func TestVerificationRecord_Cooldown(t *testing.T) {
	now := time.Now()
	until := now.Add(5 * time.Minute)
	rec := VerificationRecord{CooldownUntil: &until}

	if !rec.CooldownActive(now) {
		t.Error("CooldownActive = false, want true")
	}
	if got := rec.CooldownRemaining(now); got != 5*time.Minute {
		t.Errorf("CooldownRemaining = %v, want %v", got, 5*time.Minute)
	}

	// Exactly at the boundary the lockout is over
	if rec.CooldownActive(until) {
		t.Error("CooldownActive at the boundary = true, want false")
	}
	if got := rec.CooldownRemaining(until); got != 0 {
		t.Errorf("CooldownRemaining at the boundary = %v, want 0", got)
	}

	none := VerificationRecord{}
	if none.CooldownActive(now) {
		t.Error("CooldownActive without a cooldown = true, want false")
	}
}

func TestVerificationRecord_ChallengeExpired(t *testing.T) {
	issued := time.Now()
	ttl := 5 * time.Minute
	rec := VerificationRecord{ChallengeIssuedAt: &issued}

	if rec.ChallengeExpired(issued.Add(ttl), ttl) {
		t.Error("window should still be open exactly at issued+ttl")
	}
	if !rec.ChallengeExpired(issued.Add(ttl+time.Second), ttl) {
		t.Error("window should be closed past issued+ttl")
	}

	none := VerificationRecord{}
	if none.ChallengeExpired(issued, ttl) {
		t.Error("record without a challenge never expires")
	}
}
