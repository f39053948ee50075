package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/alexalbu001/ecs-scaler/internal/aws"
	"github.com/alexalbu001/ecs-scaler/internal/reconciler"
	"github.com/alexalbu001/ecs-scaler/pkg"
	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
)

// Reconciler adjusts one service in one cluster
type Reconciler interface {
	Reconcile(ctx context.Context, cluster, service string) (*reconciler.Result, error)
}

type TargetUI struct {
	app             *tview.Application
	ctx             context.Context
	ecsClient       aws.ECSAPI
	reconciler      Reconciler
	cluster         string
	services        []string
	list            *tview.List
	searchInput     *tview.InputField
	currentTargets  []pkg.TargetStatus
	filteredTargets []pkg.TargetStatus
	layout          *tview.Flex
	header          *tview.TextView
}

func NewTargetUI(app *tview.Application, ctx context.Context, ecsClient aws.ECSAPI, rec Reconciler, cluster string, services []string, initialTargets []pkg.TargetStatus) *TargetUI {
	s := &TargetUI{
		app:             app,
		ctx:             ctx,
		ecsClient:       ecsClient,
		reconciler:      rec,
		cluster:         cluster,
		services:        services,
		list:            tview.NewList(),
		searchInput:     tview.NewInputField().SetLabel("/ "),
		currentTargets:  initialTargets,
		filteredTargets: initialTargets,
		header:          tview.NewTextView().SetTextAlign(tview.AlignLeft).SetDynamicColors(true),
	}
	s.layout = s.createLayout()
	return s
}

// formatTarget renders one list row, coloured by drift
func formatTarget(target pkg.TargetStatus) string {
	if !target.Found {
		return fmt.Sprintf("%s - [red]not found[-]", target.ServiceName)
	}

	stateColor, state := "[green]", "in sync"
	if !target.InSync() {
		stateColor, state = "[yellow]", "drifted"
	}
	return fmt.Sprintf("%s (Desired: %d, Running: %d, Registered: %d) - %s%s[-]",
		target.ServiceName, target.DesiredCount, target.RunningCount, target.RegisteredInstances, stateColor, state)
}

func (s *TargetUI) updateList() {
	current := s.list.GetCurrentItem()
	s.list.Clear()
	for i, target := range s.filteredTargets {
		index := i
		s.list.AddItem(formatTarget(target), "", 0, func() {
			s.showReconcilePrompt(s.filteredTargets[index])
		})
	}
	if current < s.list.GetItemCount() {
		s.list.SetCurrentItem(current)
	}
	s.updateHeader()
}

func (s *TargetUI) updateHeader() {
	drifted, missing := 0, 0
	for _, target := range s.currentTargets {
		switch {
		case !target.Found:
			missing++
		case !target.InSync():
			drifted++
		}
	}

	registered := int64(0)
	if len(s.currentTargets) > 0 {
		registered = s.currentTargets[0].RegisteredInstances
	}

	s.header.Clear()
	fmt.Fprintf(s.header, "Cluster: %s\nRegistered instances: %d\nServices: %d | [yellow]Drifted: %d[-] | [red]Not found: %d[-]",
		s.cluster, registered, len(s.currentTargets), drifted, missing)
}

func (s *TargetUI) filterTargets(query string) {
	if query == "" {
		s.filteredTargets = s.currentTargets
	} else {
		s.filteredTargets = []pkg.TargetStatus{}
		for _, target := range s.currentTargets {
			if strings.Contains(strings.ToLower(target.ServiceName), strings.ToLower(query)) {
				s.filteredTargets = append(s.filteredTargets, target)
			}
		}
	}
	s.updateList()
}

func (s *TargetUI) setupSearchInput() {
	s.searchInput.
		SetChangedFunc(func(text string) {
			s.filterTargets(text)
		}).
		SetFieldBackgroundColor(tcell.GetColor("#000000"))

	s.searchInput.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		switch event.Key() {
		case tcell.KeyEsc:
			s.searchInput.SetText("")
			s.filterTargets("")
			s.app.SetFocus(s.list)
			return nil
		case tcell.KeyEnter, tcell.KeyDown:
			if s.list.GetItemCount() > 0 {
				s.app.SetFocus(s.list)
			}
			return nil
		}
		return event
	})
}

func (s *TargetUI) setupListInputCapture() {
	s.list.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		switch event.Key() {
		case tcell.KeyRune:
			switch event.Rune() {
			case 'r': // Reconcile the selected service
				if s.list.GetItemCount() > 0 {
					s.showReconcilePrompt(s.filteredTargets[s.list.GetCurrentItem()])
				}
			case 'R': // Reconcile every listed service
				s.showReconcileAllPrompt()
			case '/':
				s.app.SetFocus(s.searchInput)
				return nil
			case 'q':
				s.app.Stop()
				return nil
			}
		case tcell.KeyUp:
			if s.list.GetCurrentItem() == 0 {
				s.app.SetFocus(s.searchInput)
				return nil
			}
		}
		return event
	})
}

func (s *TargetUI) setTargets(targets []pkg.TargetStatus) {
	s.currentTargets = targets
	s.filterTargets(s.searchInput.GetText())
}

func (s *TargetUI) startPolling() {
	updateInterval := 10 * time.Second
	updates := aws.PollTargets(s.ctx, s.ecsClient, s.cluster, s.services, updateInterval)

	go func() {
		for targets := range updates {
			targets := targets
			s.app.QueueUpdateDraw(func() {
				s.setTargets(targets)
			})
		}
	}()
}

// refresh re-reads every target once, outside the polling cadence
func (s *TargetUI) refresh() error {
	targets, err := aws.DescribeTargets(s.ctx, s.ecsClient, s.cluster, s.services)
	if err != nil {
		return err
	}
	s.app.QueueUpdateDraw(func() {
		s.setTargets(targets)
	})
	return nil
}

func (s *TargetUI) createLayout() *tview.Flex {
	legend := tview.NewTextView().
		SetText("[yellow]r[-] - Reconcile | [red]R[-] - Reconcile all | [#69359C]/[-] - Search | q - Quit").
		SetTextColor(tcell.ColorWhite).
		SetDynamicColors(true).
		SetTextAlign(tview.AlignCenter)

	listFrame := tview.NewFrame(s.list).
		SetBorders(0, 0, 0, 0, 0, 0)

	mainFlex := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(s.header, 4, 1, false).
		AddItem(s.searchInput, 1, 1, false).
		AddItem(listFrame, 0, 1, true).
		AddItem(legend, 1, 1, false)

	return mainFlex
}

// DisplayTargets sets up the drift dashboard as the application root
func DisplayTargets(app *tview.Application, ctx context.Context, ecsClient aws.ECSAPI, rec Reconciler, cluster string, services []string, initialTargets []pkg.TargetStatus) *TargetUI {
	targetUI := NewTargetUI(app, ctx, ecsClient, rec, cluster, services, initialTargets)

	targetUI.updateList()
	targetUI.setupSearchInput()
	targetUI.setupListInputCapture()
	targetUI.startPolling()

	app.SetRoot(targetUI.layout, true)
	app.SetFocus(targetUI.list)
	return targetUI
}

// showReconcilePrompt asks before reconciling a single service
func (s *TargetUI) showReconcilePrompt(target pkg.TargetStatus) {
	modal := tview.NewModal().
		SetText(fmt.Sprintf("Service: %s\nSet desired count to %d registered instances?", target.ServiceName, target.RegisteredInstances)).
		AddButtons([]string{"Reconcile", "Cancel"}).
		SetDoneFunc(func(buttonIndex int, buttonLabel string) {
			if buttonLabel == "Reconcile" {
				go s.reconcileTargets([]string{target.ServiceName})
			}
			s.app.SetRoot(s.layout, true)
		})

	s.app.SetRoot(modal, false)
}

// showReconcileAllPrompt shows a confirmation prompt to reconcile every service.
func (s *TargetUI) showReconcileAllPrompt() {
	modal := tview.NewModal().
		SetText("Reconcile all listed services with the registered instance count?").
		AddButtons([]string{"Yes", "No"}).
		SetDoneFunc(func(buttonIndex int, buttonLabel string) {
			if buttonLabel == "Yes" {
				services := make([]string, 0, len(s.filteredTargets))
				for _, target := range s.filteredTargets {
					services = append(services, target.ServiceName)
				}
				go s.reconcileTargets(services)
			}
			s.app.SetRoot(s.layout, true)
		})

	s.app.SetRoot(modal, false)
}

// reconcileTargets reconciles services one after another off the UI goroutine
// and reports the outcome in a modal.
func (s *TargetUI) reconcileTargets(services []string) {
	message := summarize(s.ctx, s.reconciler, s.cluster, services)
	message = appendRefreshError(message, s.refresh())

	s.app.QueueUpdateDraw(func() {
		showMessage(s.app, message, s.layout)
	})
}

// summarize runs the reconciler for each service and describes the outcome
func summarize(ctx context.Context, rec Reconciler, cluster string, services []string) string {
	var adjusted, skipped, failed []string
	for _, service := range services {
		result, err := rec.Reconcile(ctx, cluster, service)
		switch {
		case err != nil:
			failed = append(failed, fmt.Sprintf("%s (%v)", service, err))
		case result.Action == reconciler.ActionAdjusted:
			adjusted = append(adjusted, fmt.Sprintf("%s (%d -> %d)", service, result.PreviousDesired, result.RegisteredInstances))
		default:
			skipped = append(skipped, service)
		}
	}

	var b strings.Builder
	if len(adjusted) > 0 {
		fmt.Fprintf(&b, "Adjusted: %s\n", strings.Join(adjusted, ", "))
	}
	if len(skipped) > 0 {
		fmt.Fprintf(&b, "Skipped: %s\n", strings.Join(skipped, ", "))
	}
	if len(failed) > 0 {
		fmt.Fprintf(&b, "Failed: %s\n", strings.Join(failed, ", "))
	}
	if b.Len() == 0 {
		return "Nothing to reconcile."
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// appendRefreshError notes a failed list refresh below the reconcile outcome
func appendRefreshError(message string, err error) string {
	if err == nil {
		return message
	}
	return fmt.Sprintf("%s\nRefresh failed: %v", message, err)
}

// showMessage shows a modal with a message and an OK button that returns to the service list.
func showMessage(app *tview.Application, message string, previousView tview.Primitive) {
	modal := tview.NewModal().
		SetText(message).
		AddButtons([]string{"OK"}).
		SetDoneFunc(func(buttonIndex int, buttonLabel string) {
			app.SetRoot(previousView, true)
		})

	app.SetRoot(modal, false)
}
