package authkit

import (
	"context"

	"github.com/scriptdeck/authkit/internal"
)

// GenerateBackupCodes describes the generatebackupcodes operation and its observable behavior.
//
// GenerateBackupCodes replaces the full recovery set; codes from earlier
// generations stop working immediately. Requires an active second factor.
func (e *Engine) GenerateBackupCodes(ctx context.Context, principalID string) ([]string, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}

	record, err := e.provider.GetTOTPRecord(ctx, principalID)
	if err != nil {
		return nil, ErrTOTPUnavailable
	}
	if record == nil || record.State != MFAEnabled {
		return nil, ErrTOTPNotEnrolled
	}

	codes, err := e.replaceBackupCodes(ctx, principalID)
	if err != nil {
		return nil, err
	}

	e.metricInc(MetricBackupCodeRegenerated)
	e.emitAudit(ctx, auditEventBackupCodesGenerated, true, principalID, "", nil, func() map[string]string {
		return map[string]string{"count": itoa(len(codes))}
	})

	return codes, nil
}

// replaceBackupCodes mints a fresh recovery set and stores only the
// hashes. The plaintext return value is the single disclosure.
func (e *Engine) replaceBackupCodes(ctx context.Context, principalID string) ([]string, error) {
	count := e.config.BackupCodes.Count

	codes := make([]string, 0, count)
	records := make([]BackupCodeRecord, 0, count)
	for i := 0; i < count; i++ {
		code, err := internal.NewBackupCode()
		if err != nil {
			return nil, ErrBackupCodesUnavailable
		}
		codes = append(codes, code)
		records = append(records, BackupCodeRecord{Hash: internal.HashBackupCode(code)})
	}

	if err := e.provider.ReplaceBackupCodes(ctx, principalID, records); err != nil {
		return nil, ErrBackupCodesUnavailable
	}

	return codes, nil
}
