package integration

import "airsync/internal/domain/integration"

type listOutput struct {
	Body listResponse
}

type listResponse struct {
	Integrations []integration.Summary `json:"integrations"`
}

type findInput struct {
	ID string `path:"id" doc:"Integration id"`
}

type findOutput struct {
	Body integration.Summary
}

type usageInput struct {
	ID    string `path:"id" doc:"Integration id"`
	Month string `query:"month" pattern:"^[0-9]{4}-[0-9]{2}$" doc:"Month in YYYY-MM format, all months when empty"`
}

type usageOutput struct {
	Body usageResponse
}

type usageResponse struct {
	ID       string         `json:"id"`
	APICalls map[string]int `json:"api_calls"`
	Total    int            `json:"total"`
}
