// Package monitoring turns a simulator into a server so that a run can be
// stepped and inspected from a browser or with curl.
package monitoring

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"runtime/pprof"
	"strconv"
	"sync"
	"time"

	"github.com/google/pprof/profile"
	"github.com/gorilla/mux"
	"github.com/pkg/browser"
	"github.com/shirou/gopsutil/process"
	"github.com/syifan/goseth"

	"github.com/sarchlab/pagesim/mem/vm"
	"github.com/sarchlab/pagesim/mem/vm/simulator"
)

// Monitor serves the state of one simulator over HTTP. The accesses that
// have not been simulated yet wait in a queue and are consumed by the step and
// run requests.
type Monitor struct {
	lock      sync.Mutex
	sim       *simulator.Simulator
	pending   []vm.Access
	last      simulator.Snapshot
	listener  net.Listener
	server    *http.Server
	profileOf time.Duration

	portNumber int
}

// NewMonitor creates a new Monitor.
func NewMonitor() *Monitor {
	return &Monitor{
		profileOf: time.Second,
	}
}

// WithPortNumber sets the port number of the monitor.
func (m *Monitor) WithPortNumber(portNumber int) *Monitor {
	if portNumber != 0 && portNumber < 1000 {
		fmt.Fprintf(os.Stderr,
			"Port number %d is assigned to the monitoring server, "+
				"which is not allowed. Using a random port instead.\n", portNumber)
		portNumber = 0
	}

	m.portNumber = portNumber

	return m
}

// RegisterSimulator sets the simulator to serve and the accesses it still
// has to process.
func (m *Monitor) RegisterSimulator(
	s *simulator.Simulator,
	accesses []vm.Access,
) {
	m.lock.Lock()
	defer m.lock.Unlock()

	m.sim = s
	m.pending = append([]vm.Access(nil), accesses...)
	m.last = s.InitialSnapshot()
}

// Router returns the handler of the monitoring API.
func (m *Monitor) Router() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/api/config", m.config).Methods(http.MethodGet)
	r.HandleFunc("/api/state", m.state).Methods(http.MethodGet)
	r.HandleFunc("/api/frames", m.frames).Methods(http.MethodGet)
	r.HandleFunc("/api/frames/{frame}", m.frame).Methods(http.MethodGet)
	r.HandleFunc("/api/stats", m.stats).Methods(http.MethodGet)
	r.HandleFunc("/api/step", m.step).Methods(http.MethodPost)
	r.HandleFunc("/api/run", m.run).Methods(http.MethodPost)
	r.HandleFunc("/api/resource", m.listResources).Methods(http.MethodGet)
	r.HandleFunc("/api/profile", m.collectProfile).Methods(http.MethodGet)

	return r
}

// StartServer starts serving in the background and returns the URL of the
// server.
func (m *Monitor) StartServer() (string, error) {
	listener, err := net.Listen("tcp", ":"+strconv.Itoa(m.portNumber))
	if err != nil {
		return "", err
	}

	m.listener = listener
	m.server = &http.Server{
		Handler:           m.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	url := fmt.Sprintf("http://localhost:%d/api/state",
		listener.Addr().(*net.TCPAddr).Port)
	fmt.Fprintf(os.Stderr, "Monitoring simulation with %s\n", url)

	go func() {
		err := m.server.Serve(listener)
		if err != nil && err != http.ErrServerClosed {
			fmt.Fprintf(os.Stderr, "monitoring server stopped: %v\n", err)
		}
	}()

	return url, nil
}

// OpenInBrowser opens the URL with the default browser.
func (m *Monitor) OpenInBrowser(url string) error {
	return browser.OpenURL(url)
}

// StopServer shuts the server down.
func (m *Monitor) StopServer() error {
	if m.server == nil {
		return nil
	}

	return m.server.Close()
}

type configRsp struct {
	VirtualAddressBits  uint   `json:"virtual_address_bits"`
	PhysicalAddressBits uint   `json:"physical_address_bits"`
	OffsetBits          uint   `json:"offset_bits"`
	NumProcesses        uint64 `json:"num_processes"`
	VirtualMemorySize   uint64 `json:"virtual_memory_size"`
	PhysicalMemorySize  uint64 `json:"physical_memory_size"`
	PageSize            uint64 `json:"page_size"`
	NumPages            uint64 `json:"num_pages"`
	NumFrames           int    `json:"num_frames"`
	ProcessBits         uint   `json:"process_bits"`
}

func (m *Monitor) config(w http.ResponseWriter, _ *http.Request) {
	m.lock.Lock()
	defer m.lock.Unlock()

	if !m.mustHaveSimulator(w) {
		return
	}

	c := m.sim.Config()
	writeJSON(w, configRsp{
		VirtualAddressBits:  c.VirtualAddressBits,
		PhysicalAddressBits: c.PhysicalAddressBits,
		OffsetBits:          c.OffsetBits,
		NumProcesses:        c.NumProcesses,
		VirtualMemorySize:   c.VirtualMemorySize(),
		PhysicalMemorySize:  c.PhysicalMemorySize(),
		PageSize:            c.PageSize(),
		NumPages:            c.NumPages(),
		NumFrames:           c.NumFrames(),
		ProcessBits:         c.ProcessBits(),
	})
}

func (m *Monitor) state(w http.ResponseWriter, _ *http.Request) {
	m.lock.Lock()
	defer m.lock.Unlock()

	if !m.mustHaveSimulator(w) {
		return
	}

	buf := new(bytes.Buffer)

	serializer := goseth.NewSerializer()
	serializer.SetRoot(&m.last)
	serializer.SetMaxDepth(4)

	err := serializer.Serialize(buf)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(buf.Bytes())
}

type frameRsp struct {
	Frame      int    `json:"frame"`
	Present    bool   `json:"present"`
	Modified   bool   `json:"modified"`
	Referenced bool   `json:"referenced"`
	PID        uint32 `json:"pid"`
	Page       uint64 `json:"page"`
	PTE        uint64 `json:"pte"`
	Aging      uint8  `json:"aging"`
}

func makeFrameRsp(f simulator.FrameState) frameRsp {
	rsp := frameRsp{
		Frame: f.Frame,
		PTE:   uint64(f.PTE),
		Aging: f.Aging,
	}

	if f.Entry.Present {
		rsp.Present = true
		rsp.Modified = f.Entry.Modified
		rsp.Referenced = f.Entry.Referenced
		rsp.PID = uint32(f.Entry.PID)
		rsp.Page = f.Entry.Page
	}

	return rsp
}

func (m *Monitor) frames(w http.ResponseWriter, _ *http.Request) {
	m.lock.Lock()
	defer m.lock.Unlock()

	if !m.mustHaveSimulator(w) {
		return
	}

	rsp := make([]frameRsp, 0, len(m.last.Frames))
	for _, f := range m.last.Frames {
		rsp = append(rsp, makeFrameRsp(f))
	}

	writeJSON(w, rsp)
}

func (m *Monitor) frame(w http.ResponseWriter, r *http.Request) {
	m.lock.Lock()
	defer m.lock.Unlock()

	if !m.mustHaveSimulator(w) {
		return
	}

	index, err := strconv.Atoi(mux.Vars(r)["frame"])
	if err != nil || index < 0 || index >= len(m.last.Frames) {
		http.Error(w, "Frame not found", http.StatusNotFound)
		return
	}

	writeJSON(w, makeFrameRsp(m.last.Frames[index]))
}

type stepRsp struct {
	Step    int        `json:"step"`
	PID     uint32     `json:"pid"`
	Command string     `json:"command"`
	VAddr   uint64     `json:"vaddr"`
	Page    uint64     `json:"page"`
	Offset  uint64     `json:"offset"`
	Fault   bool       `json:"fault"`
	Frame   int        `json:"frame"`
	Evicted bool       `json:"evicted"`
	Victim  *victimRsp `json:"victim,omitempty"`
	Frames  []frameRsp `json:"frames"`
	NumLeft int        `json:"num_left"`
}

type victimRsp struct {
	PID  uint32 `json:"pid"`
	Page uint64 `json:"page"`
}

func (m *Monitor) step(w http.ResponseWriter, _ *http.Request) {
	m.lock.Lock()
	defer m.lock.Unlock()

	if !m.mustHaveSimulator(w) {
		return
	}

	if len(m.pending) == 0 {
		http.Error(w, "No access left to simulate", http.StatusConflict)
		return
	}

	a := m.pending[0]
	m.pending = m.pending[1:]
	m.last = m.sim.Step(a)

	s := m.last
	rsp := stepRsp{
		Step:    s.Step,
		PID:     uint32(s.Access.PID),
		Command: s.Access.Command.String(),
		VAddr:   s.Access.VAddr,
		Page:    s.Page,
		Offset:  s.Offset,
		Fault:   s.Fault,
		Frame:   s.Allocation.Frame,
		Evicted: s.Allocation.Evicted,
		NumLeft: len(m.pending),
	}

	if s.Allocation.Evicted {
		rsp.Victim = &victimRsp{
			PID:  uint32(s.Allocation.Victim.PID),
			Page: s.Allocation.Victim.Page,
		}
	}

	for _, f := range s.Frames {
		rsp.Frames = append(rsp.Frames, makeFrameRsp(f))
	}

	writeJSON(w, rsp)
}

type statsRsp struct {
	Steps     int     `json:"steps"`
	Accesses  uint64  `json:"accesses"`
	Hits      uint64  `json:"hits"`
	Faults    uint64  `json:"faults"`
	Evictions uint64  `json:"evictions"`
	HitRatio  float64 `json:"hit_ratio"`
	NumLeft   int     `json:"num_left"`
}

func (m *Monitor) makeStatsRsp() statsRsp {
	s := m.sim.Stats()

	return statsRsp{
		Steps:     m.sim.NumSteps(),
		Accesses:  s.Accesses,
		Hits:      s.Hits,
		Faults:    s.Faults,
		Evictions: s.Evictions,
		HitRatio:  s.HitRatio(),
		NumLeft:   len(m.pending),
	}
}

func (m *Monitor) stats(w http.ResponseWriter, _ *http.Request) {
	m.lock.Lock()
	defer m.lock.Unlock()

	if !m.mustHaveSimulator(w) {
		return
	}

	writeJSON(w, m.makeStatsRsp())
}

func (m *Monitor) run(w http.ResponseWriter, _ *http.Request) {
	m.lock.Lock()
	defer m.lock.Unlock()

	if !m.mustHaveSimulator(w) {
		return
	}

	if len(m.pending) > 0 {
		snapshots := m.sim.Run(m.pending)
		m.last = snapshots[len(snapshots)-1]
		m.pending = nil
	}

	writeJSON(w, m.makeStatsRsp())
}

type resourceRsp struct {
	CPUPercent float64 `json:"cpu_percent"`
	MemorySize uint64  `json:"memory_size"`
}

func (m *Monitor) listResources(w http.ResponseWriter, _ *http.Request) {
	pid := os.Getpid()

	process, err := process.NewProcess(int32(pid))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	cpuPercent, err := process.CPUPercent()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	memorySize, err := process.MemoryInfo()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, resourceRsp{
		CPUPercent: cpuPercent,
		MemorySize: memorySize.RSS,
	})
}

func (m *Monitor) collectProfile(w http.ResponseWriter, _ *http.Request) {
	buf := bytes.NewBuffer(nil)

	err := pprof.StartCPUProfile(buf)
	if err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}

	time.Sleep(m.profileOf)

	pprof.StopCPUProfile()

	prof, err := profile.ParseData(buf.Bytes())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, prof)
}

func (m *Monitor) mustHaveSimulator(w http.ResponseWriter) bool {
	if m.sim == nil {
		http.Error(w, "No simulator registered", http.StatusServiceUnavailable)
		return false
	}

	return true
}

func writeJSON(w http.ResponseWriter, v any) {
	bytes, err := json.Marshal(v)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(bytes)
}
