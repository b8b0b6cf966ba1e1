// Package operation catalogs the gated analysis operations with their
// token cost and minimum access tier.
package operation

import (
	"fmt"

	"github.com/iacai-network/access-layer/internal/app/domain/tier"
)

// Request describes one gated operation.
type Request struct {
	OperationID  string    `json:"operation_id"`
	TokenCost    int64     `json:"token_cost"`
	RequiredTier tier.Tier `json:"required_tier"`
}

var catalog = map[string]Request{
	"terraform_analysis": {OperationID: "terraform_analysis", TokenCost: 1, RequiredTier: tier.Basic},
	"checkov_scan":       {OperationID: "checkov_scan", TokenCost: 2, RequiredTier: tier.Basic},
	"preview_analysis":   {OperationID: "preview_analysis", TokenCost: 3, RequiredTier: tier.Pro},
	"llm_analysis":       {OperationID: "llm_analysis", TokenCost: 5, RequiredTier: tier.Pro},
	"cost_optimization":  {OperationID: "cost_optimization", TokenCost: 5, RequiredTier: tier.Pro},
	"security_audit":     {OperationID: "security_audit", TokenCost: 10, RequiredTier: tier.Enterprise},
	"full_review":        {OperationID: "full_review", TokenCost: 15, RequiredTier: tier.Enterprise},
}

var order = []string{
	"terraform_analysis",
	"checkov_scan",
	"preview_analysis",
	"llm_analysis",
	"cost_optimization",
	"security_audit",
	"full_review",
}

// Lookup resolves an operation ID against the catalog.
func Lookup(id string) (Request, error) {
	req, ok := catalog[id]
	if !ok {
		return Request{}, fmt.Errorf("unknown operation type: %s", id)
	}
	return req, nil
}

// List returns the catalog in stable display order.
func List() []Request {
	out := make([]Request, 0, len(order))
	for _, id := range order {
		out = append(out, catalog[id])
	}
	return out
}
