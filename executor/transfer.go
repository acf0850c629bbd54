package executor

import (
	"github.com/lumennetwork/node/shared/fixedpoint"
	"github.com/lumennetwork/node/state/kv"
	"github.com/lumennetwork/node/types"
)

// applyTransfer moves FLK from the sending account to m.To, reverting
// rather than underflowing the sender's balance. The recipient is
// credited directly through w since the generic account wrapper only
// persists the signer's own row.
func applyTransfer(w *kv.Writer, sender [20]byte, acc types.AccountInfo, m types.Transfer) (types.Response, types.AccountInfo, error) {
	bal := fixedpoint.RawFLK(acc.FlkBalance)
	amt := fixedpoint.RawFLK(m.Amount)
	if fixedpoint.Cmp(bal, amt) < 0 {
		return types.Response{Reverted: true, Error: types.ErrInsufficientStake}, acc, nil
	}
	acc.FlkBalance = fixedpoint.Sub(bal, amt).Raw()

	if m.To != sender {
		recipient, _, err := w.GetAccount(m.To)
		if err != nil {
			return types.Response{}, acc, err
		}
		recipient.FlkBalance = fixedpoint.Add(fixedpoint.RawFLK(recipient.FlkBalance), amt).Raw()
		if err := w.PutAccount(m.To, recipient); err != nil {
			return types.Response{}, acc, err
		}
	}

	return success(nil), acc, nil
}

// applyDeposit credits the sending account's own FLK or stables balance;
// the bridge intake event itself (out-of-band funds arriving from the
// external chain) is out of scope (spec.md non-goals) — only the
// resulting balance credit is modeled here.
func applyDeposit(acc types.AccountInfo, m types.Deposit) (types.Response, types.AccountInfo) {
	if m.IsStable {
		acc.StablesBalance = fixedpoint.Add(fixedpoint.RawStable(acc.StablesBalance), fixedpoint.RawStable(m.Amount)).Raw()
	} else {
		acc.FlkBalance = fixedpoint.Add(fixedpoint.RawFLK(acc.FlkBalance), fixedpoint.RawFLK(m.Amount)).Raw()
	}
	return success(nil), acc
}

// applyWithdraw debits the sending account's balance, reverting on
// insufficient funds.
func applyWithdraw(acc types.AccountInfo, m types.Withdraw) (types.Response, types.AccountInfo) {
	if m.IsStable {
		bal := fixedpoint.RawStable(acc.StablesBalance)
		amt := fixedpoint.RawStable(m.Amount)
		if fixedpoint.Cmp(bal, amt) < 0 {
			return types.Response{Reverted: true, Error: types.ErrInsufficientStake}, acc
		}
		acc.StablesBalance = fixedpoint.Sub(bal, amt).Raw()
		return success(nil), acc
	}
	bal := fixedpoint.RawFLK(acc.FlkBalance)
	amt := fixedpoint.RawFLK(m.Amount)
	if fixedpoint.Cmp(bal, amt) < 0 {
		return types.Response{Reverted: true, Error: types.ErrInsufficientStake}, acc
	}
	acc.FlkBalance = fixedpoint.Sub(bal, amt).Raw()
	return success(nil), acc
}
