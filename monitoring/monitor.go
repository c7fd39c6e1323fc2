// Package monitoring serves the state of a running simulation over HTTP.
package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"runtime/pprof"
	"strings"
	"sync"
	"time"

	"github.com/google/pprof/profile"
	"github.com/gorilla/mux"
	"github.com/pkg/browser"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shirou/gopsutil/process"
	"github.com/sirupsen/logrus"
	"github.com/syifan/goseth"

	"github.com/sarchlab/nucasim/monitoring/web"
	"github.com/sarchlab/nucasim/sim/id"
	"github.com/sarchlab/nucasim/sim/naming"
	"github.com/sarchlab/nucasim/stats"
)

// Monitor turns a simulation into a server that reports its components,
// statistics and progress.
type Monitor struct {
	components  []naming.Named
	statsSource stats.Source
	simLock     sync.Locker
	portNumber  int
	openBrowser bool
	logger      logrus.FieldLogger
	ids         id.Generator

	promRegistry *prometheus.Registry
	server       *http.Server

	progressBarsLock sync.Mutex
	progressBars     []*ProgressBar
}

// NewMonitor creates a new Monitor
func NewMonitor() *Monitor {
	return &Monitor{
		simLock:      noLock{},
		logger:       logrus.StandardLogger(),
		ids:          id.NewSequential("bar-"),
		promRegistry: prometheus.NewRegistry(),
	}
}

type noLock struct{}

func (noLock) Lock()   {}
func (noLock) Unlock() {}

// WithPortNumber sets the port number of the monitor.
func (m *Monitor) WithPortNumber(portNumber int) *Monitor {
	if portNumber != 0 && portNumber < 1000 {
		m.logger.Warnf("Port number %d is not allowed for the monitoring "+
			"server, using a random port instead", portNumber)
		portNumber = 0
	}

	m.portNumber = portNumber

	return m
}

// WithLogger sets the logger.
func (m *Monitor) WithLogger(logger logrus.FieldLogger) *Monitor {
	m.logger = logger
	return m
}

// WithOpenBrowser makes StartServer open the monitor page in a browser.
func (m *Monitor) WithOpenBrowser(open bool) *Monitor {
	m.openBrowser = open
	return m
}

// WithSimulationLock sets the lock that guards the simulated state. The lock
// is held while a component or the statistics are read.
func (m *Monitor) WithSimulationLock(l sync.Locker) *Monitor {
	m.simLock = l
	return m
}

// RegisterComponent register a component to be monitored.
func (m *Monitor) RegisterComponent(c naming.Named) {
	m.components = append(m.components, c)
}

// RegisterStats sets the statistics that the monitor reports, both on
// /api/stats and on /metrics.
func (m *Monitor) RegisterStats(source stats.Source) {
	m.statsSource = source
	m.promRegistry.MustRegister(stats.NewCollector(lockedSource{m, source}))
}

type lockedSource struct {
	m      *Monitor
	source stats.Source
}

func (s lockedSource) Snapshot() []stats.Entry {
	s.m.simLock.Lock()
	defer s.m.simLock.Unlock()

	return s.source.Snapshot()
}

// CreateProgressBar creates a new progress bar.
func (m *Monitor) CreateProgressBar(name string, total uint64) *ProgressBar {
	bar := &ProgressBar{
		id:        m.ids.Generate(),
		name:      name,
		startTime: time.Now(),
		total:     total,
	}

	m.progressBarsLock.Lock()
	defer m.progressBarsLock.Unlock()

	m.progressBars = append(m.progressBars, bar)

	return bar
}

// CompleteProgressBar removes a bar to be shown on the webpage.
func (m *Monitor) CompleteProgressBar(pb *ProgressBar) {
	m.progressBarsLock.Lock()
	defer m.progressBarsLock.Unlock()

	newBars := make([]*ProgressBar, 0, len(m.progressBars))
	for _, b := range m.progressBars {
		if b != pb {
			newBars = append(newBars, b)
		}
	}

	m.progressBars = newBars
}

// Router returns the HTTP routes of the monitor.
func (m *Monitor) Router() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/api/list_components", m.listComponents)
	r.HandleFunc("/api/component/{name}", m.listComponentDetails)
	r.HandleFunc("/api/field/{json}", m.listFieldValue)
	r.HandleFunc("/api/stats", m.listStats)
	r.HandleFunc("/api/progress", m.listProgressBars)
	r.HandleFunc("/api/resource", m.listResources)
	r.HandleFunc("/api/profile", m.collectProfile)
	r.Handle("/metrics",
		promhttp.HandlerFor(m.promRegistry, promhttp.HandlerOpts{}))
	r.PathPrefix("/").Handler(http.FileServer(web.GetAssets()))

	return r
}

// StartServer starts the monitor as a web server and returns its address.
func (m *Monitor) StartServer() (string, error) {
	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", m.portNumber))
	if err != nil {
		return "", err
	}

	url := fmt.Sprintf("http://localhost:%d",
		listener.Addr().(*net.TCPAddr).Port)

	m.server = &http.Server{
		Handler:           m.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		err := m.server.Serve(listener)
		if err != nil && err != http.ErrServerClosed {
			m.logger.WithError(err).Error("Monitoring server stopped")
		}
	}()

	m.logger.WithField("url", url).Info("Monitoring simulation")

	if m.openBrowser {
		if err := browser.OpenURL(url); err != nil {
			m.logger.WithError(err).Warn("Cannot open the browser")
		}
	}

	return url, nil
}

// StopServer shuts the server down.
func (m *Monitor) StopServer(ctx context.Context) error {
	if m.server == nil {
		return nil
	}

	return m.server.Shutdown(ctx)
}

func (m *Monitor) listComponents(w http.ResponseWriter, _ *http.Request) {
	names := make([]string, 0, len(m.components))
	for _, c := range m.components {
		names = append(names, c.Name())
	}

	writeJSON(w, names)
}

func (m *Monitor) listComponentDetails(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	component := m.findComponentOr404(w, name)
	if component == nil {
		return
	}

	m.serializeComponent(w, component, nil)
}

type fieldReq struct {
	CompName  string `json:"comp_name,omitempty"`
	FieldName string `json:"field_name,omitempty"`
}

func (m *Monitor) listFieldValue(w http.ResponseWriter, r *http.Request) {
	req := fieldReq{}

	err := json.Unmarshal([]byte(mux.Vars(r)["json"]), &req)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	component := m.findComponentOr404(w, req.CompName)
	if component == nil {
		return
	}

	m.serializeComponent(w, component, strings.Split(req.FieldName, "."))
}

func (m *Monitor) serializeComponent(
	w http.ResponseWriter,
	component naming.Named,
	entryPoint []string,
) {
	m.simLock.Lock()
	defer m.simLock.Unlock()

	serializer := goseth.NewSerializer()
	serializer.SetRoot(component)
	serializer.SetMaxDepth(1)

	if entryPoint != nil {
		err := serializer.SetEntryPoint(entryPoint)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
	}

	err := serializer.Serialize(w)
	dieOnErr(err)
}

func (m *Monitor) findComponentOr404(
	w http.ResponseWriter,
	name string,
) naming.Named {
	for _, c := range m.components {
		if c.Name() == name {
			return c
		}
	}

	http.Error(w, "Component not found", http.StatusNotFound)

	return nil
}

type statRsp struct {
	Name  string `json:"name"`
	Value uint64 `json:"value"`
}

func (m *Monitor) listStats(w http.ResponseWriter, _ *http.Request) {
	rsp := []statRsp{}

	if m.statsSource != nil {
		entries := lockedSource{m, m.statsSource}.Snapshot()
		for _, e := range entries {
			rsp = append(rsp, statRsp{Name: e.FullName(), Value: e.Value})
		}
	}

	writeJSON(w, rsp)
}

func (m *Monitor) listProgressBars(w http.ResponseWriter, _ *http.Request) {
	m.progressBarsLock.Lock()
	bars := make([]Progress, 0, len(m.progressBars))
	for _, b := range m.progressBars {
		bars = append(bars, b.Progress())
	}
	m.progressBarsLock.Unlock()

	writeJSON(w, bars)
}

type resourceRsp struct {
	CPUPercent float64 `json:"cpu_percent"`
	MemorySize uint64  `json:"memory_size"`
}

func (m *Monitor) listResources(w http.ResponseWriter, _ *http.Request) {
	p, err := process.NewProcess(int32(os.Getpid()))
	dieOnErr(err)

	cpuPercent, err := p.CPUPercent()
	dieOnErr(err)

	memoryInfo, err := p.MemoryInfo()
	dieOnErr(err)

	writeJSON(w, resourceRsp{
		CPUPercent: cpuPercent,
		MemorySize: memoryInfo.RSS,
	})
}

func (m *Monitor) collectProfile(w http.ResponseWriter, _ *http.Request) {
	buf := bytes.NewBuffer(nil)

	err := pprof.StartCPUProfile(buf)
	if err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}

	time.Sleep(time.Second)

	pprof.StopCPUProfile()

	prof, err := profile.ParseData(buf.Bytes())
	dieOnErr(err)

	writeJSON(w, prof)
}

func writeJSON(w http.ResponseWriter, v any) {
	bytes, err := json.Marshal(v)
	dieOnErr(err)

	w.Header().Set("Content-Type", "application/json")

	_, err = w.Write(bytes)
	dieOnErr(err)
}

func dieOnErr(err error) {
	if err != nil {
		log.Panic(err)
	}
}
