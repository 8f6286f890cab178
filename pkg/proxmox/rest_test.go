package proxmox

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"time"

	"testing"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/stretchr/testify/suite"
)

type RESTClientSuite struct {
	suite.Suite
	server   *httptest.Server
	client   *RESTClient
	handlers map[string]http.HandlerFunc
	requests []*http.Request
}

func (s *RESTClientSuite) SetupTest() {
	s.handlers = map[string]http.HandlerFunc{}
	s.requests = nil
	s.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.requests = append(s.requests, r.Clone(r.Context()))
		if handler, ok := s.handlers[r.URL.Path]; ok {
			handler(w, r)
			return
		}
		http.NotFound(w, r)
	}))

	hc := retryablehttp.NewClient()
	hc.RetryMax = 0
	hc.Logger = nil
	hc.HTTPClient.Timeout = 5 * time.Second
	s.client = &RESTClient{
		baseURL: s.server.URL + "/api2/json",
		token:   "PVEAPIToken=root@pam!mcp=secret",
		http:    hc,
	}
}

func (s *RESTClientSuite) TearDownTest() {
	s.server.Close()
}

func (s *RESTClientSuite) respond(path, body string) {
	s.handlers[path] = func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}
}

func (s *RESTClientSuite) TestAuthorizationHeader() {
	s.respond("/api2/json/version", `{"data":{"version":"8.2.4","release":"8.2"}}`)
	version, err := s.client.Version(context.Background())
	s.Require().NoError(err)
	s.Equal("8.2.4", version)
	s.Require().Len(s.requests, 1)
	s.Equal("PVEAPIToken=root@pam!mcp=secret", s.requests[0].Header.Get("Authorization"))
}

func (s *RESTClientSuite) TestListClusterResourcesFiltersGuests() {
	s.respond("/api2/json/cluster/resources", `{"data":[
		{"vmid":100,"name":"web-01","node":"pve1","type":"qemu","status":"running"},
		{"vmid":200,"name":"db-01","node":"pve1","type":"lxc","status":"stopped"}
	]}`)
	resources, err := s.client.ListClusterResources(context.Background())
	s.Require().NoError(err)
	s.Require().Len(resources, 2)
	s.Equal(KindVM, resources[0].Kind())
	s.Equal(KindContainer, resources[1].Kind())
	s.Equal("vm", s.requests[0].URL.Query().Get("type"))
}

func (s *RESTClientSuite) TestStorageContentCarriesLocation() {
	s.respond("/api2/json/nodes/pve1/storage/local/content", `{"data":[
		{"volid":"local:backup/vzdump-qemu-100.vma.zst","content":"backup","size":1024,"protected":1}
	]}`)
	items, err := s.client.ListStorageContent(context.Background(), "pve1", "local", "backup", 0)
	s.Require().NoError(err)
	s.Require().Len(items, 1)
	s.Equal("pve1", items[0].Node)
	s.Equal("local", items[0].Storage)
	s.Equal("backup", s.requests[0].URL.Query().Get("content"))
}

func (s *RESTClientSuite) TestMutationReturnsUPID() {
	s.respond("/api2/json/nodes/pve1/qemu/100/status/start", `{"data":"UPID:pve1:0001:qmstart:100:root@pam:"}`)
	upid, err := s.client.GuestAction(context.Background(), "pve1", KindVM, 100, "start", nil)
	s.Require().NoError(err)
	s.Equal("UPID:pve1:0001:qmstart:100:root@pam:", upid)
	s.Equal(http.MethodPost, s.requests[0].Method)
}

func (s *RESTClientSuite) TestSynchronousMutationReturnsEmptyUPID() {
	s.respond("/api2/json/nodes/pve1/lxc/200/snapshot/old", `{"data":null}`)
	upid, err := s.client.DeleteSnapshot(context.Background(), "pve1", KindContainer, 200, "old")
	s.Require().NoError(err)
	s.Empty(upid)
}

func (s *RESTClientSuite) TestAPIErrorCarriesBackendMessage() {
	s.handlers["/api2/json/nodes/pve1/qemu"] = func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"message":"unable to create VM 100 - VM 100 already exists","errors":{"vmid":"already exists"}}`))
	}
	_, err := s.client.CreateGuest(context.Background(), "pve1", KindVM, url.Values{"vmid": []string{"100"}})
	s.Require().Error(err)
	apiErr, ok := err.(*APIError)
	s.Require().True(ok)
	s.Equal(http.StatusInternalServerError, apiErr.StatusCode)
	s.Contains(apiErr.Message, "already exists")
	s.False(IsTransient(err), "an answered request must never be classified transient")
}

func (s *RESTClientSuite) TestEmptyErrorBodyFallsBackToStatusLine() {
	s.handlers["/api2/json/version"] = func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}
	_, err := s.client.Version(context.Background())
	s.Require().Error(err)
	apiErr, ok := err.(*APIError)
	s.Require().True(ok)
	s.NotEmpty(apiErr.Message)
}

func (s *RESTClientSuite) TestConnectionFailureIsTransient() {
	s.server.Close()
	_, err := s.client.Version(context.Background())
	s.Require().Error(err)
	s.True(IsTransient(err))
}

func (s *RESTClientSuite) TestDeleteVolumeEscapesVolid() {
	// The handler map is keyed on the decoded path; the assertion checks the
	// escaped form actually sent on the wire.
	s.respond("/api2/json/nodes/pve1/storage/local/content/local:iso/debian-12.iso", `{"data":null}`)
	_, err := s.client.DeleteVolume(context.Background(), "pve1", "local", "local:iso/debian-12.iso")
	s.Require().NoError(err)
	s.Contains(s.requests[0].URL.EscapedPath(), "local:iso%2Fdebian-12.iso")
}

func TestRESTClient(t *testing.T) {
	suite.Run(t, new(RESTClientSuite))
}
