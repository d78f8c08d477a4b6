package fallback

import "html/template"

var templates = template.Must(template.New("fallback").Parse(`
{{define "header"}}
<header class="site-header" id="top">
  <div class="site-header__brand"><a href="/">{{.Name}}</a></div>
  <nav class="site-header__nav">
    <ul>
    {{range .Nav}}<li><a href="{{.Href}}">{{.Label}}</a></li>{{end}}
    </ul>
  </nav>
</header>
{{end}}

{{define "footer"}}
<footer class="site-footer">
  <div class="site-footer__about">
    <strong>{{.Name}}</strong>
    <p>{{.Tagline}}</p>
  </div>
  {{template "contact-list" .}}
  {{if .Social}}<ul class="site-footer__social">
    {{range .Social}}<li><a href="{{.Href}}" rel="noopener">{{.Label}}</a></li>{{end}}
  </ul>{{end}}
  <p class="site-footer__legal">&copy; {{.Name}}. All rights reserved.</p>
</footer>
{{end}}

{{define "contact-list"}}
<ul class="contact-list">
  {{if .Email}}<li><a href="mailto:{{.Email}}">{{.Email}}</a></li>{{end}}
  {{if .Phone}}<li><a href="tel:{{.Phone}}">{{.Phone}}</a></li>{{end}}
  {{if .Address}}<li>{{.Address}}</li>{{end}}
  {{if not (or .Email .Phone .Address)}}<li>Contact details coming soon.</li>{{end}}
</ul>
{{end}}

{{define "section-hero"}}
<div class="{{.Scope}}"><section class="hero">
  <h1>{{.Name}}</h1>
  <p class="hero__tagline">{{.Tagline}}</p>
  <a class="button" href="#contact">Get in touch</a>
</section></div>
{{end}}

{{define "section-about"}}
<div class="{{.Scope}}"><section class="about">
  <h2>About {{.Name}}</h2>
  <div class="about__text">{{.Description}}</div>
</section></div>
{{end}}

{{define "section-services"}}
<div class="{{.Scope}}"><section class="services">
  <h2>What we offer</h2>
  <ul class="cards">
    <li class="card"><h3>Consultation</h3><p>Tell us what you need and we will plan it with you.</p></li>
    <li class="card"><h3>{{if .Industry}}{{.Industry}} services{{else}}Core services{{end}}</h3><p>Reliable work delivered by people who care.</p></li>
    <li class="card"><h3>Support</h3><p>We stay available after the job is done.</p></li>
  </ul>
</section></div>
{{end}}

{{define "section-features"}}
<div class="{{.Scope}}"><section class="features">
  <h2>Why choose {{.Name}}</h2>
  <ul class="cards">
    <li class="card"><h3>Experience</h3><p>Years of practice{{if .Industry}} in {{.Industry}}{{end}}.</p></li>
    <li class="card"><h3>Quality</h3><p>Attention to every detail.</p></li>
    <li class="card"><h3>Care</h3><p>{{if .Audience}}Built around {{.Audience}}.{{else}}Built around our customers.{{end}}</p></li>
  </ul>
</section></div>
{{end}}

{{define "section-testimonials"}}
<div class="{{.Scope}}"><section class="testimonials">
  <h2>What people say</h2>
  <blockquote><p>Friendly, professional and on time.</p><cite>A happy customer</cite></blockquote>
  <blockquote><p>I would recommend {{.Name}} to anyone.</p><cite>A returning client</cite></blockquote>
</section></div>
{{end}}

{{define "section-cta"}}
<div class="{{.Scope}}"><section class="cta">
  <h2>Ready to get started?</h2>
  <p>Reach out to {{.Name}} today.</p>
  <a class="button" href="#contact">Contact us</a>
</section></div>
{{end}}

{{define "section-contact"}}
<div class="{{.Scope}}"><section class="contact" id="contact">
  <h2>Contact</h2>
  {{template "contact-list" .}}
</section></div>
{{end}}

{{define "section-map"}}
<div class="{{.Scope}}"><section class="map">
  <h2>Find us</h2>
  <div class="map__frame"><p>{{if .Address}}{{.Address}}{{else}}Location details coming soon.{{end}}</p></div>
</section></div>
{{end}}

{{define "section-newsletter"}}
<div class="{{.Scope}}"><section class="newsletter">
  <h2>Stay in the loop</h2>
  <form class="newsletter__form" action="#" method="post">
    <input type="email" name="email" placeholder="you@example.com" required>
    <button type="submit">Subscribe</button>
  </form>
</section></div>
{{end}}

{{define "section-team"}}
<div class="{{.Scope}}"><section class="team">
  <h2>Our team</h2>
  <p>The people behind {{.Name}}.</p>
  <ul class="cards">
    <li class="card"><img src="{{.Image}}" alt="Team member"><h3>Founder</h3></li>
    <li class="card"><img src="{{.Image}}" alt="Team member"><h3>Lead</h3></li>
  </ul>
</section></div>
{{end}}

{{define "section-gallery"}}
<div class="{{.Scope}}"><section class="gallery">
  <h2>Gallery</h2>
  <div class="gallery__grid">
    <img src="{{.Image}}" alt="{{.Name}} gallery image 1">
    <img src="{{.Image}}" alt="{{.Name}} gallery image 2">
    <img src="{{.Image}}" alt="{{.Name}} gallery image 3">
  </div>
</section></div>
{{end}}

{{define "section-faq"}}
<div class="{{.Scope}}"><section class="faq">
  <h2>Frequently asked questions</h2>
  <details><summary>How do I get in touch?</summary><p>Use the contact details on this site.</p></details>
  <details><summary>Who do you work with?</summary><p>{{if .Audience}}{{.Audience}}{{else}}Anyone who needs our help.{{end}}</p></details>
</section></div>
{{end}}

{{define "section-content"}}
<div class="{{.Scope}}"><section class="content">
  <h2>{{if .Page}}{{.Page}}{{else}}{{.Name}}{{end}}</h2>
  <div class="content__text">{{.Description}}</div>
</section></div>
{{end}}
`))
