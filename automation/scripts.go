package automation

// Scripts evaluated in the page. Each is a self-contained expression whose
// result is JSON-serializable.

// ScriptScrollBottom scrolls the document to its end.
const ScriptScrollBottom = `(() => {
	window.scrollTo(0, document.body.scrollHeight);
	return true;
})()`

// ScriptScrollTop scrolls the document to its start.
const ScriptScrollTop = `(() => {
	window.scrollTo(0, 0);
	return true;
})()`

// ScriptTriggerValidation dispatches blur and change on every form control so
// client-side validation sees the programmatic fills. Returns the number of
// controls touched.
const ScriptTriggerValidation = `(() => {
	const controls = document.querySelectorAll('form input, form select, form textarea, [required]');
	let n = 0;
	controls.forEach(el => {
		if (el.type === 'file') return;
		el.dispatchEvent(new Event('input', { bubbles: true }));
		el.dispatchEvent(new Event('change', { bubbles: true }));
		el.dispatchEvent(new Event('blur', { bubbles: true }));
		n++;
	});
	return n;
})()`

// ScriptForceFooter overrides CSS that keeps the fixed footer collapsed.
const ScriptForceFooter = `(() => {
	if (!document.getElementById('__footer_force')) {
		const style = document.createElement('style');
		style.id = '__footer_force';
		style.textContent = 'footer, [class*="fixed-footer"], [class*="fixed--footer"], [class*="fixed-grid"] {' +
			'display: flex !important; visibility: visible !important; opacity: 1 !important; position: relative !important; }';
		document.head.appendChild(style);
	}
	document.body.offsetHeight;
	return true;
})()`

// ScriptInjectFooterProbe mounts an inert footer-like element at the end of
// the form and reports whether it renders visibly. The element has no
// handlers and is removed before returning.
const ScriptInjectFooterProbe = `(() => {
	const host = document.querySelector('form') || document.body;
	const probe = document.createElement('footer');
	probe.setAttribute('data-probe', 'footer');
	probe.innerHTML = '<span>probe</span>';
	host.appendChild(probe);
	const r = probe.getBoundingClientRect();
	const visible = r.width > 0 && r.height > 0 && getComputedStyle(probe).visibility !== 'hidden';
	probe.remove();
	return visible;
})()`

// ScriptListButtons returns the texts of up to 10 visible buttons.
const ScriptListButtons = `(() => {
	const out = [];
	for (const b of document.querySelectorAll('button, input[type="submit"], a[role="button"]')) {
		const r = b.getBoundingClientRect();
		if (r.width === 0 && r.height === 0) continue;
		const t = (b.innerText || b.value || '').trim();
		if (t) out.push(t);
		if (out.length >= 10) break;
	}
	return out;
})()`

// ScriptRevealFileInputs makes hidden native file inputs rendered and
// interactable. Returns how many were found.
const ScriptRevealFileInputs = `(() => {
	const inputs = document.querySelectorAll('input[type="file"]');
	inputs.forEach(el => {
		el.style.display = 'block';
		el.style.visibility = 'visible';
		el.style.opacity = '1';
		el.style.position = 'relative';
		el.removeAttribute('hidden');
	});
	return inputs.length;
})()`
