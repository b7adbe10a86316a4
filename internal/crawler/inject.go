package crawler

// agentScript installs window.__routedoc in the page. The object serialises
// the live DOM into the snapshot wire format and exposes the scroll and
// size primitives the stitcher needs. Installing twice is a no-op.
const agentScript = `() => {
	if (window.__routedoc) return true;

	const STYLE_PROPS = [
		'display', 'visibility', 'opacity', 'position', 'zIndex',
		'backgroundColor', 'color', 'fontSize', 'fontFamily', 'fontWeight',
		'margin', 'padding', 'border', 'borderRadius', 'boxShadow',
		'gridTemplateColumns', 'gridTemplateAreas',
		'flexDirection', 'justifyContent', 'alignItems'
	];
	const SKIP = new Set(['STYLE', 'LINK', 'META', 'NOSCRIPT', 'TEMPLATE', 'IFRAME']);
	// kept with their attributes, children dropped
	const LEAF = new Set(['SVG', 'CANVAS']);
	const MAX_TEXT = 2000;
	const MAX_SCRIPT = 200000;

	function box(el) {
		return {
			scrollWidth: el.scrollWidth, scrollHeight: el.scrollHeight,
			offsetWidth: el.offsetWidth, offsetHeight: el.offsetHeight,
			clientWidth: el.clientWidth, clientHeight: el.clientHeight
		};
	}

	function maxWidthMedia() {
		for (const sheet of Array.from(document.styleSheets)) {
			let rules;
			try { rules = sheet.cssRules; } catch (e) { continue; }
			for (const rule of Array.from(rules || [])) {
				if (rule.media && /max-width/.test(rule.media.mediaText)) return true;
			}
		}
		return false;
	}

	function serialise(node) {
		if (node.nodeType === Node.TEXT_NODE) {
			const text = node.textContent;
			if (!text || !text.trim()) return null;
			return { x: text.length > MAX_TEXT ? text.slice(0, MAX_TEXT) : text };
		}
		if (node.nodeType !== Node.ELEMENT_NODE) return null;
		const tag = node.tagName.toUpperCase();
		if (SKIP.has(tag)) return null;

		const out = { t: node.tagName.toLowerCase() };
		if (node.attributes.length) {
			out.a = Array.from(node.attributes).map(a => [a.name, a.value]);
		}

		if (tag === 'SCRIPT') {
			if (!node.src && node.textContent) {
				out.c = [{ x: node.textContent.slice(0, MAX_SCRIPT) }];
			}
			return out;
		}
		if (tag === 'HEAD') {
			out.c = Array.from(node.children)
				.filter(c => c.tagName === 'TITLE' || c.tagName === 'SCRIPT')
				.map(serialise).filter(Boolean);
			return out;
		}

		const r = node.getBoundingClientRect();
		out.r = { x: r.x, y: r.y, width: r.width, height: r.height };
		const cs = window.getComputedStyle(node);
		const s = {};
		for (const p of STYLE_PROPS) s[p] = cs[p];
		out.s = s;
		if (LEAF.has(tag)) return out;

		const children = [];
		for (const child of Array.from(node.childNodes)) {
			const c = serialise(child);
			if (c) children.push(c);
		}
		if (children.length) out.c = children;
		return out;
	}

	window.__routedoc = {
		version: 1,
		snapshot() {
			return JSON.stringify({
				window: {
					innerWidth: window.innerWidth,
					innerHeight: window.innerHeight,
					scrollX: window.scrollX,
					scrollY: window.scrollY,
					href: location.href,
					origin: location.origin,
					title: document.title,
					charset: document.characterSet,
					scripts: document.scripts.length,
					styleSheets: document.styleSheets.length,
					maxWidthMedia: maxWidthMedia(),
					body: box(document.body),
					document: box(document.documentElement)
				},
				root: serialise(document.documentElement)
			});
		},
		dimensions() {
			const b = document.body, d = document.documentElement;
			return {
				scrollWidth: Math.max(b.scrollWidth, d.scrollWidth, b.offsetWidth, d.offsetWidth, d.clientWidth),
				scrollHeight: Math.max(b.scrollHeight, d.scrollHeight, b.offsetHeight, d.offsetHeight, d.clientHeight),
				innerWidth: window.innerWidth,
				innerHeight: window.innerHeight
			};
		},
		scrollTo(x, y) {
			window.scrollTo(x, y);
			return window.scrollY;
		}
	};
	return true;
}`

// agentPresentScript reports whether the agent is installed in the current document.
const agentPresentScript = `() => typeof window.__routedoc === 'object' && window.__routedoc !== null`

// dimensionsScript measures the page without the agent, for capture on a
// page the agent was never injected into.
const dimensionsScript = `() => {
	const b = document.body, d = document.documentElement;
	return JSON.stringify({
		scrollWidth: Math.max(b.scrollWidth, d.scrollWidth, b.offsetWidth, d.offsetWidth, d.clientWidth),
		scrollHeight: Math.max(b.scrollHeight, d.scrollHeight, b.offsetHeight, d.offsetHeight, d.clientHeight),
		innerWidth: window.innerWidth,
		innerHeight: window.innerHeight
	});
}`

const scrollScript = `(y) => { window.scrollTo(0, y); return window.scrollY; }`

const spaScript = `() => {
	// React
	if (window.__REACT_DEVTOOLS_GLOBAL_HOOK__ || document.querySelector('[data-reactroot]') || document.querySelector('#__next')) return true;
	// Vue
	if (window.__VUE__ || document.querySelector('[data-v-app]')) return true;
	// Angular
	if (window.ng || document.querySelector('[ng-version]') || document.querySelector('app-root')) return true;
	// Svelte
	if (document.querySelector('[class*="svelte-"]')) return true;
	return false;
}`

const interactiveCountScript = `() => {
	const buttons = document.querySelectorAll('button, [role="button"], input[type="submit"]');
	const inputs = document.querySelectorAll('input:not([type="hidden"]), textarea');
	const links = document.querySelectorAll('a[href]');
	let visible = 0;
	buttons.forEach(el => { if (el.offsetParent) visible++; });
	inputs.forEach(el => { if (el.offsetParent) visible++; });
	links.forEach(el => { if (el.offsetParent) visible++; });
	return visible;
}`
