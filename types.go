package main

import (
	"clinic-queue/internal/queue"
	"clinic-queue/internal/remote"
)

type SpecificRequest struct {
	TicketNumber *int `json:"ticket_number"`
}

type EnqueueRequest struct {
	Number *int `json:"number"`
}

type InstantRequest struct {
	Filename string `json:"filename"`
}

type DisplayNameRequest struct {
	Name string `json:"name"`
}

type RateRequest struct {
	Rate float64 `json:"rate"`
}

type CallResponse struct {
	Call    remote.CallRecord `json:"call"`
	Counter queue.Counter     `json:"counter"`
}

type WaitResponse struct {
	CounterID            string  `json:"counter_id"`
	TicketNumber         int     `json:"ticket_number"`
	EstimatedWaitMinutes float64 `json:"estimated_wait_minutes"`
}

type HistoryResponse struct {
	Events []queue.CallEvent `json:"events"`
}

type TokenResponse struct {
	Token string `json:"token"`
}

type AnnouncerStatus struct {
	Enabled bool    `json:"enabled"`
	Busy    bool    `json:"busy"`
	Rate    float64 `json:"rate"`
}
