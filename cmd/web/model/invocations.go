package model

type CreateInvocation struct {
	Inputs interface{} `json:"inputs" swaggertype:"object"`
}

type CreateInvocationSuccess struct {
	ID          string        `json:"id" example:"8f1c2a5e-6f3e-4a52-9c0e-3c1b7c6d2e11"`
	Predictions []interface{} `json:"predictions" swaggertype:"array,string" example:"setosa"`
}
