package main

import (
	"net/http"

	"github.com/CodedInternet/golbis/comms"
	"github.com/go-chi/render"
)

// StatusPayload is the operator facing snapshot of both links. The queue
// depth is worth watching during pump outages as nothing bounds it.
type StatusPayload struct {
	WSDM       comms.LinkStatus `json:"wsdm"`
	Pump       comms.LinkStatus `json:"pump"`
	QueueDepth int              `json:"queue_depth"`
}

func StatusHandler(wsdm *comms.WSDMClient, pump *comms.PumpClient, queue *comms.IntensityQueue) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		render.JSON(w, r, StatusPayload{
			WSDM:       wsdm.Status(),
			Pump:       pump.Status(),
			QueueDepth: queue.Depth(),
		})
	}
}

func HealthHandler(w http.ResponseWriter, r *http.Request) {
	render.PlainText(w, r, "OK")
}
