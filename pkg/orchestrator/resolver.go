package orchestrator

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/pve-tools/proxmox-mcp-server/pkg/proxmox"
)

// ResourceRef identifies one managed resource cluster-wide. It is immutable
// once resolved and re-resolved on every operation: guests migrate and get
// destroyed behind the server's back, so cached locations go stale.
type ResourceRef struct {
	Node string               `json:"node"`
	Kind proxmox.ResourceKind `json:"kind"`
	ID   int                  `json:"vmid"`
	Name string               `json:"name,omitempty"`
}

func (r ResourceRef) String() string {
	label := r.Name
	if label == "" {
		label = fmt.Sprintf("%s-%d", r.Kind, r.ID)
	}
	return fmt.Sprintf("%s %s (ID: %d, node: %s)", r.Kind.Display(), label, r.ID, r.Node)
}

// KindAny matches either resource kind during resolution.
const KindAny proxmox.ResourceKind = ""

// Resolver turns caller-supplied selectors into concrete ResourceRefs by
// querying live cluster inventory.
type Resolver struct {
	client proxmox.Client
}

func NewResolver(client proxmox.Client) *Resolver {
	return &Resolver{client: client}
}

// Resolve accepts a selector in one of four forms: a bare numeric id, a
// "node:id" pair, a "node/name" pair or a bare name. Name matching is exact
// and case-sensitive. When expected is not KindAny, a match of the other kind
// fails with KindMismatch. A bare name matching more than one resource fails
// with Ambiguous listing every candidate; the resolver never guesses.
func (r *Resolver) Resolve(ctx context.Context, selector string, expected proxmox.ResourceKind) (ResourceRef, error) {
	selector = strings.TrimSpace(selector)
	if selector == "" {
		return ResourceRef{}, newError(ErrValidation, "empty selector")
	}

	inventory, err := r.client.ListClusterResources(ctx)
	if err != nil {
		return ResourceRef{}, classifyBackendError(err)
	}

	var matches []ResourceRef
	switch {
	case strings.Contains(selector, ":"):
		node, idText, _ := strings.Cut(selector, ":")
		id, err := strconv.Atoi(idText)
		if err != nil {
			return ResourceRef{}, newError(ErrValidation, "invalid selector %q: %q is not a numeric id", selector, idText)
		}
		matches = match(inventory, func(res proxmox.ClusterResource) bool {
			return res.Node == node && res.VMID == id
		})
	case strings.Contains(selector, "/"):
		node, name, _ := strings.Cut(selector, "/")
		matches = match(inventory, func(res proxmox.ClusterResource) bool {
			return res.Node == node && res.Name == name
		})
	default:
		if id, err := strconv.Atoi(selector); err == nil {
			matches = match(inventory, func(res proxmox.ClusterResource) bool {
				return res.VMID == id
			})
		} else {
			matches = match(inventory, func(res proxmox.ClusterResource) bool {
				return res.Name == selector
			})
		}
	}

	switch len(matches) {
	case 0:
		return ResourceRef{}, newError(ErrNotFound, "no resource matched selector %q", selector)
	case 1:
		// continue below
	default:
		return ResourceRef{}, &OpError{
			Kind:       ErrAmbiguous,
			Detail:     fmt.Sprintf("selector %q matched %d resources, disambiguate with node:id or node/name", selector, len(matches)),
			Candidates: matches,
		}
	}

	ref := matches[0]
	if expected != KindAny && ref.Kind != expected {
		return ResourceRef{}, newError(ErrKindMismatch,
			"selector %q resolved to a %s, expected a %s", selector, ref.Kind.Display(), expected.Display())
	}
	return ref, nil
}

// ResolveAll resolves a comma-separated list of selectors, deduplicating by
// (node, id). Used by the container power tools, which accept batches.
func (r *Resolver) ResolveAll(ctx context.Context, selector string, expected proxmox.ResourceKind) ([]ResourceRef, error) {
	tokens := strings.Split(selector, ",")
	seen := make(map[string]bool)
	refs := make([]ResourceRef, 0, len(tokens))
	for _, token := range tokens {
		token = strings.TrimSpace(token)
		if token == "" {
			continue
		}
		ref, err := r.Resolve(ctx, token, expected)
		if err != nil {
			return nil, err
		}
		key := fmt.Sprintf("%s:%d", ref.Node, ref.ID)
		if seen[key] {
			continue
		}
		seen[key] = true
		refs = append(refs, ref)
	}
	if len(refs) == 0 {
		return nil, newError(ErrNotFound, "no resource matched selector %q", selector)
	}
	return refs, nil
}

// Exists reports whether any resource currently uses the given id. Used as a
// create-time precondition.
func (r *Resolver) Exists(ctx context.Context, vmid int) (bool, error) {
	inventory, err := r.client.ListClusterResources(ctx)
	if err != nil {
		return false, classifyBackendError(err)
	}
	for _, res := range inventory {
		if res.VMID == vmid {
			return true, nil
		}
	}
	return false, nil
}

func match(inventory []proxmox.ClusterResource, pred func(proxmox.ClusterResource) bool) []ResourceRef {
	var refs []ResourceRef
	for _, res := range inventory {
		if !pred(res) {
			continue
		}
		refs = append(refs, ResourceRef{
			Node: res.Node,
			Kind: res.Kind(),
			ID:   res.VMID,
			Name: res.Name,
		})
	}
	return refs
}
