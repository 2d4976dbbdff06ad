package main

import (
	"leverage_planner/internal/bootstrap"
	"leverage_planner/internal/flashloan"

	"github.com/shopspring/decimal"
)

type feeTableView struct {
	Version           string          `json:"version"`
	DefaultRate       decimal.Decimal `json:"defaultRate"`
	ReducedRate       decimal.Decimal `json:"reducedRate"`
	AcceptedFeeTokens []string        `json:"acceptedFeeTokens"`
}

type flashloanTableView struct {
	Version   string                   `json:"version"`
	Entries   []flashloan.EntrySpec    `json:"entries"`
	Overrides []flashloan.OverrideSpec `json:"overrides"`
}

type tablesView struct {
	Fees      feeTableView       `json:"fees"`
	Flashloan flashloanTableView `json:"flashloan"`
}

func describeTables(app *bootstrap.App) tablesView {
	return tablesView{
		Fees: feeTableView{
			Version:           app.Fees.Version(),
			DefaultRate:       app.Fees.DefaultRate(),
			ReducedRate:       app.Fees.ReducedRate(),
			AcceptedFeeTokens: app.Fees.AcceptedFeeTokens(),
		},
		Flashloan: flashloanTableView{
			Version:   app.Flashloans.Version(),
			Entries:   app.Flashloans.Entries(),
			Overrides: app.Flashloans.Overrides(),
		},
	}
}
