package main

import (
	"context"
	"expvar"
	"flag"
	"fmt"
	"log"
	"net/http"
	"net/mail"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/change"
	"github.com/trezcool/darasa/core/draft"
	"github.com/trezcool/darasa/core/reconcile"
	"github.com/trezcool/darasa/core/record"
	emailsvc "github.com/trezcool/darasa/services/email"
	ledgersvc "github.com/trezcool/darasa/services/ledger"
	logsvc "github.com/trezcool/darasa/services/logger"
	recordsvc "github.com/trezcool/darasa/services/recordstore"
)

func main() {
	token := flag.String("token", os.Getenv("DARASA_TOKEN"), "Session token issued by the ledger.")
	classID := flag.Int("class", 0, "Class id of the active selection scope.")
	gender := flag.String("gender", "", "Gender of the active selection scope.")
	flag.Parse()

	// =========================================================================
	// Set up Dependencies

	conf := core.NewConfig()

	logger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "ENGINE : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	logger.Enable(!conf.Debug)

	sess, err := core.NewSession(*token, conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("verifying session token: %v", err), err)
	}

	ledger := ledgersvc.NewClient(conf, sess)
	store := recordsvc.NewClient(conf, sess)

	var emailSvc core.EmailService
	if conf.SendgridApiKey != "" {
		emailSvc = emailsvc.NewSendgridService(conf, logger)
	} else {
		emailSvc = emailsvc.NewConsoleService(conf)
	}
	notifier := emailsvc.NewResolutionNotifier(emailSvc, sessionResolver(sess))
	dispatcher := reconcile.NewDispatcher(notifier)

	// =========================================================================
	// Initialize App

	logger.Info(fmt.Sprintf("Engine initializing : version %q", conf.Build), sess)
	defer logger.Info("Engine stopped")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	scope := draft.ScopeKey{ClassID: *classID, Gender: *gender}
	cache := draft.NewCache()
	cache.Select(scope, seedScope(ctx, logger, store, scope)...)

	// =========================================================================
	// Start Debug Service

	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)

	go func() {
		if err := http.ListenAndServe(conf.Server.DebugHost, http.DefaultServeMux); err != nil {
			logger.Error(fmt.Sprintf("debug server closed: %v", err), err)
		}
	}()

	// =========================================================================
	// Start Reconciliation Pollers

	consumers := []reconcile.Consumer{
		{Name: "attendance", Types: []change.ModelType{change.Attendance}, Scope: scope, Interval: conf.Poll.AttendanceInterval},
		{Name: "marks", Types: []change.ModelType{change.Marks}, Scope: scope, Interval: conf.Poll.MarksInterval},
		{Name: "fees", Types: []change.ModelType{change.Fee}, Scope: scope, Interval: conf.Poll.FeeInterval},
		{Name: "test-marks", Types: []change.ModelType{change.TestMarks}, Scope: scope, Interval: conf.Poll.TestMarksInterval},
	}

	var wg sync.WaitGroup
	for _, cons := range consumers {
		poller := reconcile.NewPoller(cons, ledger, store, cache, dispatcher, logger)
		wg.Add(1)
		go func() {
			defer wg.Done()
			poller.Run(ctx)
		}()
	}

	// =========================================================================
	// Shutdown

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

	cancel()
	wg.Wait()
}

// seedScope fetches the committed records of every tracked type for the
// selection scope, overlay hints included.
func seedScope(ctx context.Context, logger core.Logger, store record.Store, scope draft.ScopeKey) []record.OverlayView {
	q := record.ScopeQuery{ClassID: scope.ClassID, Gender: scope.Gender}

	var views []record.OverlayView
	for _, mt := range []change.ModelType{change.Attendance, change.Marks, change.Fee, change.TestMarks} {
		ents, err := store.ListEntities(ctx, mt, q)
		if err != nil {
			logger.Error(fmt.Sprintf("seeding %s records: %v", mt, err), err)
			continue
		}
		for _, ent := range ents {
			views = append(views, record.Merge(ent, nil))
		}
	}
	return views
}

// sessionResolver routes resolution mail to the engine's own editor; requests
// authored by anyone else are someone else's news.
func sessionResolver(sess core.Session) emailsvc.AddressResolver {
	return func(username string) (mail.Address, bool) {
		if username != sess.Username || sess.Email == "" {
			return mail.Address{}, false
		}
		return sess.EmailAddress(), true
	}
}
