// Package storefront serves a small fake of the Swag Labs demo shop.
//
// It reproduces the DOM contract the page objects rely on: the login form ids,
// the data-test error banner, the inventory container, per-product add-to-cart
// buttons and the cart badge. It also has a confirm() dialog behind the
// clear-cart button. Sessions live in a session-username cookie, as on the
// real site, and carts are kept in memory per user.
package storefront

import (
	"embed"
	"fmt"
	"html/template"
	"net/http"
	"net/url"
	"slices"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kuitang/swaglabs-e2e/internal/obs"
	"github.com/kuitang/swaglabs-e2e/internal/ratelimit"
)

const (
	// SessionCookie holds the signed-in user name.
	SessionCookie = "session-username"
	// Password is accepted for every known user.
	Password = "secret_sauce"

	LoginTitle     = "Swag Labs | Login"
	InventoryTitle = "Swag Labs"
)

// Login banner texts.
const (
	ErrUsernameRequired = "Epic sadface: Username is required"
	ErrPasswordRequired = "Epic sadface: Password is required"
	ErrNoMatch          = "Epic sadface: Username and password do not match any user in this service"
	ErrLockedOut        = "Epic sadface: Sorry, this user has been locked out."
	ErrNotLoggedIn      = "Epic sadface: You can only access '/inventory.html' when you are logged in."
)

// LockedOutUser exists but may not sign in.
const LockedOutUser = "locked_out_user"

// DefaultUsers are the accounts that can sign in.
var DefaultUsers = []string{
	"standard_user",
	"problem_user",
	"performance_glitch_user",
	"error_user",
	"visual_user",
}

//go:embed templates/*.html
var templateFS embed.FS

// Config configures a Server.
type Config struct {
	Users     []string
	LoginRate ratelimit.Config
	// Registry receives the storefront metrics. Nil uses a private registry.
	Registry *prometheus.Registry
}

// Server is the fake storefront.
type Server struct {
	users    map[string]bool
	limiter  *ratelimit.RateLimiter
	metrics  *metrics
	registry *prometheus.Registry
	pages    map[string]*template.Template
	blurbs   map[string]template.HTML

	mu    sync.Mutex
	carts map[string]map[string]bool
}

// New builds a Server. Call Close to stop the login throttle.
func New(cfg Config) (*Server, error) {
	if len(cfg.Users) == 0 {
		cfg.Users = DefaultUsers
	}
	if cfg.LoginRate.RPS <= 0 || cfg.LoginRate.Burst <= 0 {
		cfg.LoginRate = ratelimit.DefaultConfig
	}
	if cfg.Registry == nil {
		cfg.Registry = prometheus.NewRegistry()
	}

	s := &Server{
		users:    make(map[string]bool, len(cfg.Users)),
		limiter:  ratelimit.NewRateLimiter(cfg.LoginRate),
		registry: cfg.Registry,
		pages:    make(map[string]*template.Template),
		blurbs:   make(map[string]template.HTML, len(Catalog)),
		carts:    make(map[string]map[string]bool),
	}
	for _, u := range cfg.Users {
		s.users[u] = true
	}

	m, err := newMetrics(cfg.Registry)
	if err != nil {
		s.limiter.Stop()
		return nil, err
	}
	s.metrics = m

	for _, name := range []string{"login.html", "inventory.html"} {
		tmpl, err := template.ParseFS(templateFS, "templates/base.html", "templates/"+name)
		if err != nil {
			s.limiter.Stop()
			return nil, fmt.Errorf("parse template %s: %w", name, err)
		}
		s.pages[name] = tmpl
	}
	for _, p := range Catalog {
		s.blurbs[p.Slug] = renderMarkdown(p.Description)
	}
	return s, nil
}

// Close stops background work.
func (s *Server) Close() {
	s.limiter.Stop()
}

// Handler returns the storefront routes wrapped in request id and access logging.
func (s *Server) Handler() http.Handler {
	throttle := ratelimit.Middleware(s.limiter, ratelimit.ClientIP, func(*http.Request) {
		s.metrics.logins.WithLabelValues("throttled").Inc()
	})

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleLoginPage)
	mux.Handle("POST /login", throttle(http.HandlerFunc(s.handleLogin)))
	mux.HandleFunc("GET /inventory.html", s.handleInventory)
	mux.HandleFunc("POST /cart/add/{slug}", s.handleCartAdd)
	mux.HandleFunc("POST /cart/remove/{slug}", s.handleCartRemove)
	mux.HandleFunc("POST /cart/clear", s.handleCartClear)
	mux.HandleFunc("GET /logout", s.handleLogout)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	})
	mux.Handle("GET /metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))

	return obs.Middleware("storefront")(mux)
}

type loginView struct {
	Title    string
	Username string
	Error    string
	Accepted []string
	Password string
}

type productView struct {
	Slug   string
	Name   string
	Blurb  template.HTML
	Price  float64
	InCart bool
}

type inventoryView struct {
	Title     string
	User      string
	CartCount int
	Products  []productView
}

func (s *Server) render(w http.ResponseWriter, r *http.Request, page string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.pages[page].ExecuteTemplate(w, "base", data); err != nil {
		obs.From(r.Context()).Error("render_failed", "pkg", "storefront", "page", page, "error", err)
	}
}

func (s *Server) renderLogin(w http.ResponseWriter, r *http.Request, username, msg string) {
	accepted := make([]string, 0, len(s.users)+1)
	for u := range s.users {
		accepted = append(accepted, u)
	}
	accepted = append(accepted, LockedOutUser)
	slices.Sort(accepted)

	s.render(w, r, "login.html", loginView{
		Title:    LoginTitle,
		Username: username,
		Error:    msg,
		Accepted: accepted,
		Password: Password,
	})
}

// currentUser returns the signed-in user from the session cookie.
func (s *Server) currentUser(r *http.Request) (string, bool) {
	c, err := r.Cookie(SessionCookie)
	if err != nil {
		return "", false
	}
	name, err := url.QueryUnescape(c.Value)
	if err != nil || !s.users[name] {
		return "", false
	}
	return name, true
}

func (s *Server) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.currentUser(r); ok {
		http.Redirect(w, r, "/inventory.html", http.StatusSeeOther)
		return
	}
	q := r.URL.Query()
	s.renderLogin(w, r, q.Get("user-name"), q.Get("error"))
}

// loginRedirect sends the browser back to the login form with a banner
// (post/redirect/get).
func loginRedirect(w http.ResponseWriter, r *http.Request, username, msg string) {
	q := url.Values{}
	q.Set("error", msg)
	if username != "" {
		q.Set("user-name", username)
	}
	http.Redirect(w, r, "/?"+q.Encode(), http.StatusSeeOther)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad form", http.StatusBadRequest)
		return
	}
	username := r.PostForm.Get("user-name")
	password := r.PostForm.Get("password")
	log := obs.From(obs.WithUser(r.Context(), username)).With("pkg", "storefront")

	var msg string
	switch {
	case username == "":
		msg = ErrUsernameRequired
	case password == "":
		msg = ErrPasswordRequired
	case username == LockedOutUser && password == Password:
		msg = ErrLockedOut
	case !s.users[username] || password != Password:
		msg = ErrNoMatch
	}
	if msg != "" {
		s.metrics.logins.WithLabelValues("rejected").Inc()
		log.Info("login_rejected", "reason", msg, "form", obs.FormatForm(r.PostForm))
		loginRedirect(w, r, username, msg)
		return
	}

	s.mu.Lock()
	s.carts[username] = make(map[string]bool)
	s.mu.Unlock()

	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    url.QueryEscape(username),
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	s.metrics.logins.WithLabelValues("accepted").Inc()
	log.Info("login_accepted")
	http.Redirect(w, r, "/inventory.html", http.StatusSeeOther)
}

func (s *Server) handleInventory(w http.ResponseWriter, r *http.Request) {
	user, ok := s.currentUser(r)
	if !ok {
		loginRedirect(w, r, "", ErrNotLoggedIn)
		return
	}

	s.mu.Lock()
	cart := s.carts[user]
	view := inventoryView{Title: InventoryTitle, User: user, CartCount: len(cart)}
	for _, p := range Catalog {
		view.Products = append(view.Products, productView{
			Slug:   p.Slug,
			Name:   p.Name,
			Blurb:  s.blurbs[p.Slug],
			Price:  p.Price,
			InCart: cart[p.Slug],
		})
	}
	s.mu.Unlock()

	s.render(w, r, "inventory.html", view)
}

func (s *Server) handleCartAdd(w http.ResponseWriter, r *http.Request) {
	s.updateCart(w, r, func(cart map[string]bool, slug string) {
		if !cart[slug] {
			cart[slug] = true
			s.metrics.cartAdds.Inc()
		}
	})
}

func (s *Server) handleCartRemove(w http.ResponseWriter, r *http.Request) {
	s.updateCart(w, r, func(cart map[string]bool, slug string) {
		delete(cart, slug)
	})
}

func (s *Server) updateCart(w http.ResponseWriter, r *http.Request, apply func(cart map[string]bool, slug string)) {
	user, ok := s.currentUser(r)
	if !ok {
		loginRedirect(w, r, "", ErrNotLoggedIn)
		return
	}
	slug := r.PathValue("slug")
	if _, ok := findProduct(slug); !ok {
		http.NotFound(w, r)
		return
	}

	s.mu.Lock()
	cart := s.carts[user]
	if cart == nil {
		cart = make(map[string]bool)
		s.carts[user] = cart
	}
	apply(cart, slug)
	s.mu.Unlock()

	http.Redirect(w, r, "/inventory.html", http.StatusSeeOther)
}

func (s *Server) handleCartClear(w http.ResponseWriter, r *http.Request) {
	user, ok := s.currentUser(r)
	if !ok {
		loginRedirect(w, r, "", ErrNotLoggedIn)
		return
	}
	s.mu.Lock()
	s.carts[user] = make(map[string]bool)
	s.mu.Unlock()
	http.Redirect(w, r, "/inventory.html", http.StatusSeeOther)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:   SessionCookie,
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	})
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// Cart returns the slugs in user's cart, sorted.
func (s *Server) Cart(user string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.carts[user]))
	for slug := range s.carts[user] {
		out = append(out, slug)
	}
	slices.Sort(out)
	return out
}
