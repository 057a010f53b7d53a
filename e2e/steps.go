//go:build e2e

package e2e

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/cucumber/godog"
)

type taxPayerBody struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Address   string `json:"address"`
}

type capitalGainBody struct {
	Date   string  `json:"date"`
	Amount float64 `json:"amount"`
}

type taxPayerView struct {
	TID          uint64 `json:"tid"`
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name"`
	Address      string `json:"address"`
	CapitalGains []struct {
		Date   string  `json:"date"`
		Amount float64 `json:"amount"`
	} `json:"capital_gains"`
}

type listView struct {
	TaxPayers []taxPayerView `json:"taxpayers"`
}

func RegisterSteps(ctx *godog.ScenarioContext, tc *TestContext) {
	ctx.Step(`^the tax registry is running$`, tc.registryIsRunning)

	ctx.Step(`^I create taxpayer "([^"]*)" named "([^"]*)" "([^"]*)" living at "([^"]*)"$`, tc.createTaxPayer)
	ctx.Step(`^I update taxpayer "([^"]*)" to "([^"]*)" "([^"]*)" living at "([^"]*)"$`, tc.updateTaxPayer)
	ctx.Step(`^I delete taxpayer "([^"]*)"$`, tc.deleteTaxPayer)
	ctx.Step(`^I add a capital gain of (-?\d+(?:\.\d+)?) dated "([^"]*)" to taxpayer "([^"]*)"$`, tc.addCapitalGain)
	ctx.Step(`^I search for taxpayer "([^"]*)"$`, tc.searchTaxPayer)
	ctx.Step(`^I search with raw tid "([^"]*)"$`, tc.searchRaw)
	ctx.Step(`^I list all taxpayers$`, tc.listAll)

	ctx.Step(`^the response status should be (\d+)$`, tc.responseStatusShouldBe)
	ctx.Step(`^the response should contain "([^"]*)"$`, tc.responseShouldContain)
	ctx.Step(`^the search should return (\d+) taxpayers?$`, tc.searchShouldReturn)
	ctx.Step(`^the found taxpayer should be named "([^"]*)" "([^"]*)" living at "([^"]*)"$`, tc.foundTaxPayerShouldBe)
	ctx.Step(`^the found taxpayer should have capital gains (.+)$`, tc.foundTaxPayerGains)
	ctx.Step(`^taxpayer "([^"]*)" should have a greater tid than "([^"]*)"$`, tc.tidGreaterThan)
	ctx.Step(`^the listing should include taxpayer "([^"]*)" before "([^"]*)"$`, tc.listingOrder)
	ctx.Step(`^the listing should not include taxpayer "([^"]*)"$`, tc.listingExcludes)
}

func (tc *TestContext) registryIsRunning(context.Context) error {
	if err := tc.do(http.MethodGet, "/health/live", nil); err != nil {
		return err
	}
	return tc.responseStatusShouldBe(context.Background(), http.StatusOK)
}

func (tc *TestContext) tid(alias string) (string, error) {
	tid, ok := tc.TIDs[alias]
	if !ok {
		return "", fmt.Errorf("no taxpayer created as %q", alias)
	}
	return strconv.FormatUint(tid, 10), nil
}

func (tc *TestContext) createTaxPayer(_ context.Context, alias, first, last, address string) error {
	body, err := json.Marshal(taxPayerBody{FirstName: first, LastName: last, Address: address})
	if err != nil {
		return err
	}
	if err := tc.do(http.MethodPost, "/taxpayers", body); err != nil {
		return err
	}
	if tc.LastResponse.StatusCode != http.StatusCreated {
		return fmt.Errorf("create returned %d: %s", tc.LastResponse.StatusCode, tc.LastResponseBody)
	}
	var resp struct {
		TID uint64 `json:"tid"`
	}
	if err := json.Unmarshal(tc.LastResponseBody, &resp); err != nil {
		return fmt.Errorf("decode create response: %w", err)
	}
	tc.TIDs[alias] = resp.TID
	return nil
}

func (tc *TestContext) updateTaxPayer(_ context.Context, alias, first, last, address string) error {
	tid, err := tc.tid(alias)
	if err != nil {
		return err
	}
	body, err := json.Marshal(taxPayerBody{FirstName: first, LastName: last, Address: address})
	if err != nil {
		return err
	}
	return tc.do(http.MethodPut, "/taxpayers/"+tid, body)
}

func (tc *TestContext) deleteTaxPayer(_ context.Context, alias string) error {
	tid, err := tc.tid(alias)
	if err != nil {
		return err
	}
	return tc.do(http.MethodDelete, "/taxpayers/"+tid, nil)
}

func (tc *TestContext) addCapitalGain(_ context.Context, amount, date, alias string) error {
	tid, err := tc.tid(alias)
	if err != nil {
		return err
	}
	value, err := strconv.ParseFloat(amount, 64)
	if err != nil {
		return err
	}
	body, err := json.Marshal(capitalGainBody{Date: date, Amount: value})
	if err != nil {
		return err
	}
	return tc.do(http.MethodPost, "/taxpayers/"+tid+"/capital-gains", body)
}

func (tc *TestContext) searchTaxPayer(_ context.Context, alias string) error {
	tid, err := tc.tid(alias)
	if err != nil {
		return err
	}
	return tc.do(http.MethodGet, "/taxpayers/search?tid="+tid, nil)
}

func (tc *TestContext) searchRaw(_ context.Context, raw string) error {
	return tc.do(http.MethodGet, "/taxpayers/search?tid="+raw, nil)
}

func (tc *TestContext) listAll(context.Context) error {
	return tc.do(http.MethodGet, "/taxpayers", nil)
}

func (tc *TestContext) responseStatusShouldBe(_ context.Context, status int) error {
	if tc.LastResponse == nil {
		return fmt.Errorf("no response recorded")
	}
	if tc.LastResponse.StatusCode != status {
		return fmt.Errorf("expected status %d, got %d: %s", status, tc.LastResponse.StatusCode, tc.LastResponseBody)
	}
	return nil
}

func (tc *TestContext) responseShouldContain(_ context.Context, text string) error {
	if !strings.Contains(string(tc.LastResponseBody), text) {
		return fmt.Errorf("response does not contain %q: %s", text, tc.LastResponseBody)
	}
	return nil
}

func (tc *TestContext) listing() (*listView, error) {
	var view listView
	if err := json.Unmarshal(tc.LastResponseBody, &view); err != nil {
		return nil, fmt.Errorf("decode listing: %w", err)
	}
	return &view, nil
}

func (tc *TestContext) searchShouldReturn(_ context.Context, n int) error {
	view, err := tc.listing()
	if err != nil {
		return err
	}
	if len(view.TaxPayers) != n {
		return fmt.Errorf("expected %d taxpayers, got %d", n, len(view.TaxPayers))
	}
	return nil
}

func (tc *TestContext) found() (*taxPayerView, error) {
	view, err := tc.listing()
	if err != nil {
		return nil, err
	}
	if len(view.TaxPayers) != 1 {
		return nil, fmt.Errorf("expected exactly one taxpayer, got %d", len(view.TaxPayers))
	}
	return &view.TaxPayers[0], nil
}

func (tc *TestContext) foundTaxPayerShouldBe(_ context.Context, first, last, address string) error {
	tp, err := tc.found()
	if err != nil {
		return err
	}
	if tp.FirstName != first || tp.LastName != last || tp.Address != address {
		return fmt.Errorf("found %q %q at %q", tp.FirstName, tp.LastName, tp.Address)
	}
	return nil
}

// foundTaxPayerGains expects a comma separated amount list, e.g. "100, -25.5", or "none".
func (tc *TestContext) foundTaxPayerGains(_ context.Context, list string) error {
	tp, err := tc.found()
	if err != nil {
		return err
	}
	var want []float64
	if list != "none" {
		for _, part := range strings.Split(list, ",") {
			v, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
			if err != nil {
				return err
			}
			want = append(want, v)
		}
	}
	if len(tp.CapitalGains) != len(want) {
		return fmt.Errorf("expected %d capital gains, got %d", len(want), len(tp.CapitalGains))
	}
	for i, v := range want {
		if tp.CapitalGains[i].Amount != v {
			return fmt.Errorf("capital gain %d: expected %v, got %v", i, v, tp.CapitalGains[i].Amount)
		}
	}
	return nil
}

func (tc *TestContext) tidGreaterThan(_ context.Context, later, earlier string) error {
	a, ok := tc.TIDs[later]
	b, ok2 := tc.TIDs[earlier]
	if !ok || !ok2 {
		return fmt.Errorf("unknown alias %q or %q", later, earlier)
	}
	if a <= b {
		return fmt.Errorf("tid %d is not greater than %d", a, b)
	}
	return nil
}

func (tc *TestContext) listingPositions() (map[uint64]int, error) {
	view, err := tc.listing()
	if err != nil {
		return nil, err
	}
	pos := make(map[uint64]int, len(view.TaxPayers))
	for i, tp := range view.TaxPayers {
		pos[tp.TID] = i
	}
	return pos, nil
}

func (tc *TestContext) listingOrder(_ context.Context, first, second string) error {
	pos, err := tc.listingPositions()
	if err != nil {
		return err
	}
	i, ok := pos[tc.TIDs[first]]
	j, ok2 := pos[tc.TIDs[second]]
	if !ok || !ok2 {
		return fmt.Errorf("listing is missing %q or %q", first, second)
	}
	if i >= j {
		return fmt.Errorf("%q listed at %d, %q at %d", first, i, second, j)
	}
	return nil
}

func (tc *TestContext) listingExcludes(_ context.Context, alias string) error {
	pos, err := tc.listingPositions()
	if err != nil {
		return err
	}
	if _, ok := pos[tc.TIDs[alias]]; ok {
		return fmt.Errorf("listing still includes %q", alias)
	}
	return nil
}
