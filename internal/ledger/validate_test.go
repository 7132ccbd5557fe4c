package ledger

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidateLine(t *testing.T) {
	cases := []struct {
		name   string
		debit  string
		credit string
		want   error
	}{
		{"debit only", "10.00", "0", nil},
		{"credit only", "0", "10.00", nil},
		{"negative debit", "-1.00", "0", ErrNegativeAmount},
		{"negative credit", "0", "-1.00", ErrNegativeAmount},
		{"both zero", "0", "0", ErrNeitherAmount},
		{"both positive", "5.00", "5.00", ErrBothAmounts},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateLine(dec(tc.debit), dec(tc.credit))
			if tc.want == nil {
				require.NoError(t, err)
			} else {
				require.ErrorIs(t, err, tc.want)
			}
		})
	}
}

func activeAccounts() map[int64]AccountRef {
	return map[int64]AccountRef{
		1: {ID: 1, Code: "1010", Type: AccountTypeAsset, Active: true},
		2: {ID: 2, Code: "4010", Type: AccountTypeRevenue, Active: true},
		3: {ID: 3, Code: "2010", Type: AccountTypeLiability, Active: false},
	}
}

func TestValidateJournalLinesBalanced(t *testing.T) {
	res := ValidateJournalLines([]LineInput{
		{AccountID: 1, Debit: dec("100.00")},
		{AccountID: 2, Credit: dec("100.00")},
	}, activeAccounts())
	require.True(t, res.Valid)
	require.Empty(t, res.Errors)
	require.True(t, res.TotalDebit.Equal(dec("100.00")))
	require.True(t, res.TotalCredit.Equal(dec("100.00")))
	require.True(t, res.Difference.IsZero())
}

func TestValidateJournalLinesTooFew(t *testing.T) {
	res := ValidateJournalLines([]LineInput{
		{AccountID: 1, Debit: dec("100.00")},
	}, activeAccounts())
	require.False(t, res.Valid)
	require.ErrorIs(t, res.Errors[0], ErrTooFewLines)
}

func TestValidateJournalLinesCollectsEveryError(t *testing.T) {
	res := ValidateJournalLines([]LineInput{
		{AccountID: 1, Debit: dec("300.00")},
		{AccountID: 3, Credit: dec("150.00")},
		{AccountID: 99, Debit: dec("50.00"), Credit: dec("50.00")},
	}, activeAccounts())
	require.False(t, res.Valid)
	require.Len(t, res.Errors, 4)

	joined := errors.Join(res.Errors...)
	require.ErrorIs(t, joined, ErrAccountInactive)
	require.ErrorIs(t, joined, ErrAccountNotFound)
	require.ErrorIs(t, joined, ErrBothAmounts)
	require.ErrorIs(t, joined, ErrUnbalanced)
}

func TestValidateJournalLinesLineIndexReported(t *testing.T) {
	res := ValidateJournalLines([]LineInput{
		{AccountID: 1, Debit: dec("100.00")},
		{AccountID: 1, Credit: dec("100.00")},
		{AccountID: 99, Debit: dec("0"), Credit: dec("0")},
	}, activeAccounts())
	require.False(t, res.Valid)

	var lineErr *LineError
	require.ErrorAs(t, res.Errors[0], &lineErr)
	require.Equal(t, 2, lineErr.Index)
}

func TestValidateJournalLinesUnbalancedDifference(t *testing.T) {
	res := ValidateJournalLines([]LineInput{
		{AccountID: 1, Debit: dec("1300.00")},
		{AccountID: 2, Credit: dec("1200.00")},
	}, activeAccounts())
	require.False(t, res.Valid)
	require.Len(t, res.Errors, 1)

	var unbalanced *UnbalancedError
	require.ErrorAs(t, res.Errors[0], &unbalanced)
	require.True(t, unbalanced.Difference.Equal(dec("100.00")), "got %s", unbalanced.Difference)
}

func TestValidateJournalLinesEpsilonTolerance(t *testing.T) {
	// Sub-cent drift passes.
	res := ValidateJournalLines([]LineInput{
		{AccountID: 1, Debit: dec("100.005")},
		{AccountID: 2, Credit: dec("100.00")},
	}, activeAccounts())
	require.True(t, res.Valid)

	// A full cent does not.
	res = ValidateJournalLines([]LineInput{
		{AccountID: 1, Debit: dec("100.01")},
		{AccountID: 2, Credit: dec("100.00")},
	}, activeAccounts())
	require.False(t, res.Valid)
	require.ErrorIs(t, res.Errors[0], ErrUnbalanced)
}
