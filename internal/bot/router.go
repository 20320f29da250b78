package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/flashzynex-dot/vps-bot/internal/events"
	"github.com/flashzynex-dot/vps-bot/internal/lifecycle"
	"github.com/flashzynex-dot/vps-bot/internal/metrics"
	"github.com/flashzynex-dot/vps-bot/internal/models"
	"github.com/flashzynex-dot/vps-bot/internal/registry"
	"github.com/flashzynex-dot/vps-bot/internal/transport"
)

// Router maps authenticated inbound messages onto registry and
// controller operations and translates results into replies. One
// goroutine consumes the transport, so commands apply in arrival order;
// only the deferred reboot leg runs concurrently with it.
type Router struct {
	tr  transport.Transport
	reg *registry.Registry
	ctl *lifecycle.Controller
	bus *events.Publisher
	log *zap.Logger

	adminID       string
	deployChannel string

	tracer trace.Tracer
}

func NewRouter(tr transport.Transport, reg *registry.Registry, ctl *lifecycle.Controller, bus *events.Publisher, adminID, deployChannel string, log *zap.Logger) *Router {
	return &Router{
		tr:            tr,
		reg:           reg,
		ctl:           ctl,
		bus:           bus,
		log:           log,
		adminID:       adminID,
		deployChannel: deployChannel,
		tracer:        otel.Tracer("vps-bot/router"),
	}
}

// Run consumes inbound messages until the context is cancelled or the
// transport closes.
func (r *Router) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-r.tr.Messages():
			if !ok {
				return nil
			}
			r.Dispatch(ctx, msg)
		}
	}
}

// Dispatch handles a single inbound message.
func (r *Router) Dispatch(ctx context.Context, msg transport.Inbound) {
	fields := strings.Fields(msg.Text)
	if len(fields) == 0 {
		return
	}
	cmd := strings.ToLower(fields[0])

	ctx, span := r.tracer.Start(ctx, "dispatch",
		trace.WithAttributes(
			attribute.String("command", cmd),
			attribute.Bool("dm", msg.DM),
		))
	defer span.End()

	switch {
	case msg.DM:
		r.handleDM(ctx, msg, cmd, fields[1:])
	case msg.ChannelID == r.deployChannel:
		r.handleDeployChannel(ctx, msg, cmd, fields[1:])
	default:
		// not a channel we listen on
	}
}

// ---------- deploy channel ----------

func (r *Router) handleDeployChannel(ctx context.Context, msg transport.Inbound, cmd string, args []string) {
	if cmd != "deploy" {
		return
	}
	if msg.ActorID != r.adminID {
		metrics.CommandsTotal.WithLabelValues(cmd, "denied").Inc()
		r.log.Warn("deploy denied", zap.String("actor", msg.ActorID))
		r.replyChannel(ctx, "You are not allowed to deploy servers.")
		return
	}

	target, specs, err := parseDeployArgs(args)
	if err != nil {
		metrics.CommandsTotal.WithLabelValues(cmd, "bad_args").Inc()
		r.replyChannel(ctx, "Usage: deploy <user> <ramMB> <diskGB> <cpuCores>")
		return
	}

	v, err := r.reg.Create(ctx, target, specs)
	if errors.Is(err, registry.ErrAlreadyExists) {
		metrics.CommandsTotal.WithLabelValues(cmd, "exists").Inc()
		r.replyChannel(ctx, fmt.Sprintf("User %s already has a VPS.", target))
		return
	}
	if err != nil {
		metrics.CommandsTotal.WithLabelValues(cmd, "error").Inc()
		r.log.Error("create failed", zap.String("target", target), zap.Error(err))
		r.replyChannel(ctx, "Deploy failed: "+err.Error())
		return
	}
	metrics.CommandsTotal.WithLabelValues(cmd, "ok").Inc()

	if err := r.bus.Publish(ctx, events.SubjectCreated, events.Event{
		Kind:    "vps.created",
		VPSID:   v.ID,
		OwnerID: v.OwnerID,
		Status:  string(v.Status),
	}); err != nil {
		r.log.Warn("publish created event", zap.Error(err))
	}

	// The credential goes to the new owner privately. If the DM cannot
	// be delivered the VPS still exists; the admin gets a degraded
	// success notice instead of a rollback.
	dm := fmt.Sprintf("Your VPS is ready!\nID: %s\nSpecs: %s\nAccess: %s\nIt is currently %s — DM me `start` to boot it.",
		v.ID, v.Specs, v.Credential, strings.ToUpper(string(v.Status)))
	if err := r.tr.SendDM(ctx, target, dm); err != nil {
		metrics.DeliveryFailures.Inc()
		r.log.Warn("could not DM new owner", zap.String("target", target), zap.Error(err))
		r.replyChannel(ctx, fmt.Sprintf("Deployed %s for %s, but I could not DM them the credentials.", v.ID, target))
		return
	}
	r.replyChannel(ctx, fmt.Sprintf("Deployed %s for %s (%s).", v.ID, target, v.Specs))
}

// parseDeployArgs accepts "<user> <ramMB> <diskGB> <cpuCores>", with the
// user given as a bare id or a chat mention like <@123>.
func parseDeployArgs(args []string) (string, models.Specs, error) {
	if len(args) != 4 {
		return "", models.Specs{}, fmt.Errorf("want 4 args, got %d", len(args))
	}
	target := strings.TrimSuffix(strings.TrimPrefix(args[0], "<@"), ">")
	if target == "" {
		return "", models.Specs{}, fmt.Errorf("empty target user")
	}
	nums := make([]int, 3)
	for i, a := range args[1:] {
		n, err := strconv.Atoi(a)
		if err != nil || n <= 0 {
			return "", models.Specs{}, fmt.Errorf("arg %q must be a positive integer", a)
		}
		nums[i] = n
	}
	return target, models.Specs{RAMMB: nums[0], DiskGB: nums[1], CPUCores: nums[2]}, nil
}

// ---------- direct messages ----------

const helpText = "Commands: `status`, `start`, `shutdown`, `reboot`, `ssh`, `help`"

func (r *Router) handleDM(ctx context.Context, msg transport.Inbound, cmd string, args []string) {
	if cmd == "help" {
		metrics.CommandsTotal.WithLabelValues(cmd, "ok").Inc()
		r.replyDM(ctx, msg.ActorID, helpText)
		return
	}

	var (
		v   *models.VPS
		err error
	)
	switch cmd {
	case "status", "ssh":
		v, err = r.ctl.Status(ctx, msg.ActorID)
	case "start":
		v, err = r.ctl.Start(ctx, msg.ActorID)
	case "shutdown":
		v, err = r.ctl.Shutdown(ctx, msg.ActorID)
	case "reboot":
		v, err = r.ctl.Reboot(ctx, msg.ActorID)
	default:
		metrics.CommandsTotal.WithLabelValues("unknown", "ok").Inc()
		r.replyDM(ctx, msg.ActorID, "Unknown command. "+helpText)
		return
	}

	if errors.Is(err, registry.ErrNotFound) {
		metrics.CommandsTotal.WithLabelValues(cmd, "no_vps").Inc()
		r.replyDM(ctx, msg.ActorID, "You don't have a VPS yet.")
		return
	}
	if err != nil {
		metrics.CommandsTotal.WithLabelValues(cmd, "error").Inc()
		r.log.Error("lifecycle command failed", zap.String("command", cmd), zap.String("actor", msg.ActorID), zap.Error(err))
		r.replyDM(ctx, msg.ActorID, "Something went wrong, try again.")
		return
	}
	metrics.CommandsTotal.WithLabelValues(cmd, "ok").Inc()

	switch cmd {
	case "ssh":
		r.replyDM(ctx, msg.ActorID, fmt.Sprintf("Access for %s:\n%s", v.ID, v.Credential))
	case "status":
		r.replyDM(ctx, msg.ActorID, fmt.Sprintf("%s [%s] — %s", v.ID, strings.ToUpper(string(v.Status)), v.Specs))
	case "reboot":
		r.replyDM(ctx, msg.ActorID, fmt.Sprintf("%s is %s, back online in a moment.", v.ID, strings.ToUpper(string(v.Status))))
	default:
		r.replyDM(ctx, msg.ActorID, fmt.Sprintf("%s is now %s.", v.ID, strings.ToUpper(string(v.Status))))
	}
}

// ---------- reply helpers ----------

// Delivery failure is transport trouble, never a lifecycle error: log,
// count, move on. The mutation already happened and stays.
func (r *Router) replyDM(ctx context.Context, userID, text string) {
	if err := r.tr.SendDM(ctx, userID, text); err != nil {
		metrics.DeliveryFailures.Inc()
		r.log.Warn("DM delivery failed", zap.String("user", userID), zap.Error(err))
	}
}

func (r *Router) replyChannel(ctx context.Context, text string) {
	if err := r.tr.SendChannel(ctx, r.deployChannel, text); err != nil {
		metrics.DeliveryFailures.Inc()
		r.log.Warn("channel delivery failed", zap.String("channel", r.deployChannel), zap.Error(err))
	}
}
