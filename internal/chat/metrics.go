package chat

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	kindQuick    = "quick"
	kindStandard = "standard"
	kindForm     = "form"
)

var ticketsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "helpdesk_tickets_created_total",
	Help: "Tickets created, by how they were requested.",
}, []string{"kind"})
