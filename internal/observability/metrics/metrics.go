package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"service", "method", "path", "status"},
	)

	httpRequestDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)

	actionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_actions_total",
			Help: "Inbound connection actions by outcome.",
		},
		[]string{"service", "action", "result"},
	)

	actionDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "relay_action_duration_seconds",
			Help:    "Time spent handling an inbound action.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"service", "action"},
	)

	otpCodesIssuedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_otp_codes_issued_total",
			Help: "One-time codes issued.",
		},
		[]string{"service"},
	)

	otpVerificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_otp_verifications_total",
			Help: "One-time code verifications by outcome.",
		},
		[]string{"service", "result"},
	)

	otpNotificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_otp_notifications_total",
			Help: "Out-of-band code deliveries by outcome.",
		},
		[]string{"service", "result"},
	)

	invitesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_invites_total",
			Help: "Invite requests by outcome.",
		},
		[]string{"service", "result"},
	)

	relationshipsFormedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_relationships_formed_total",
			Help: "Relationships created.",
		},
		[]string{"service"},
	)

	messagesStoredTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_messages_stored_total",
			Help: "Total number of stored messages.",
		},
		[]string{"service"},
	)

	messagesDeliveredLiveTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_messages_delivered_live_total",
			Help: "Messages pushed to an online recipient.",
		},
		[]string{"service"},
	)

	messageContentBytes = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "relay_message_content_bytes",
			Help:    "Content sizes for stored messages.",
			Buckets: prometheus.ExponentialBuckets(16, 2, 10),
		},
		[]string{"service"},
	)

	presenceBindings = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "relay_presence_bindings",
			Help: "Access codes currently bound to a live connection.",
		},
		[]string{"service"},
	)

	eventsDroppedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_events_dropped_total",
			Help: "Outbound events dropped because a connection outbox was full or closed.",
		},
		[]string{"service", "type"},
	)

	reaperDeletedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_reaper_deleted_total",
			Help: "Rows removed by the expiry reaper.",
		},
		[]string{"service", "kind"},
	)
)


// Curried views used by the rest of the code. They carry the service label so
// callers only pass the remaining label values.
var (
	HTTPRequestsTotal          *prometheus.CounterVec
	HTTPRequestDurationSeconds *prometheus.HistogramVec
	ActionsTotal               *prometheus.CounterVec
	ActionDurationSeconds      *prometheus.HistogramVec
	OTPCodesIssuedTotal        *prometheus.CounterVec
	OTPVerificationsTotal      *prometheus.CounterVec
	OTPNotificationsTotal      *prometheus.CounterVec
	InvitesTotal               *prometheus.CounterVec
	RelationshipsFormedTotal   *prometheus.CounterVec
	MessagesStoredTotal        *prometheus.CounterVec
	MessagesDeliveredLiveTotal *prometheus.CounterVec
	MessageContentBytes        *prometheus.HistogramVec
	PresenceBindings           *prometheus.GaugeVec
	EventsDroppedTotal         *prometheus.CounterVec
	ReaperDeletedTotal         *prometheus.CounterVec
)

func init() { curry("relay") }

func curry(serviceName string) {
	labels := prometheus.Labels{"service": serviceName}
	HTTPRequestsTotal = httpRequestsTotal.MustCurryWith(labels)
	HTTPRequestDurationSeconds = httpRequestDurationSeconds.MustCurryWith(labels).(*prometheus.HistogramVec)
	ActionsTotal = actionsTotal.MustCurryWith(labels)
	ActionDurationSeconds = actionDurationSeconds.MustCurryWith(labels).(*prometheus.HistogramVec)
	OTPCodesIssuedTotal = otpCodesIssuedTotal.MustCurryWith(labels)
	OTPVerificationsTotal = otpVerificationsTotal.MustCurryWith(labels)
	OTPNotificationsTotal = otpNotificationsTotal.MustCurryWith(labels)
	InvitesTotal = invitesTotal.MustCurryWith(labels)
	RelationshipsFormedTotal = relationshipsFormedTotal.MustCurryWith(labels)
	MessagesStoredTotal = messagesStoredTotal.MustCurryWith(labels)
	MessagesDeliveredLiveTotal = messagesDeliveredLiveTotal.MustCurryWith(labels)
	MessageContentBytes = messageContentBytes.MustCurryWith(labels).(*prometheus.HistogramVec)
	PresenceBindings = presenceBindings.MustCurryWith(labels)
	EventsDroppedTotal = eventsDroppedTotal.MustCurryWith(labels)
	ReaperDeletedTotal = reaperDeletedTotal.MustCurryWith(labels)
}

// MustRegister labels every metric with serviceName and registers the
// collectors with the default registry.
func MustRegister(serviceName string) {
	curry(serviceName)
	prometheus.MustRegister(
		httpRequestsTotal,
		httpRequestDurationSeconds,
		actionsTotal,
		actionDurationSeconds,
		otpCodesIssuedTotal,
		otpVerificationsTotal,
		otpNotificationsTotal,
		invitesTotal,
		relationshipsFormedTotal,
		messagesStoredTotal,
		messagesDeliveredLiveTotal,
		messageContentBytes,
		presenceBindings,
		eventsDroppedTotal,
		reaperDeletedTotal,
	)
}
