package sqlinline

const QSelectUserPlanByID = `--sql e2ae2179-e107-45f4-8f7c-70c041ee0113
select id, email, plan
from users
where id = $1::uuid
limit 1;
`

const QSelectUserPlanByEmail = `--sql c2462754-534b-458d-a10c-c4fd87c8e9d5
select id, email, plan
from users
where lower(email) = lower($1::text)
limit 1;
`

const QUpdateUserPlan = `--sql 42b744ca-73a4-4239-9163-a94676259dae
update users
set plan = $2::text,
    upgraded_at = case when $2::text = 'pro' then coalesce(upgraded_at, now()) else null end,
    updated_at = now()
where id = $1::uuid
returning id, email, plan;
`

const QResetDownloadCounter = `--sql d95f0be1-25da-435d-89fb-73936cccba30
insert into download_counters (user_id, download_count, period_started_at)
values ($1::uuid, 0, now())
on conflict (user_id) do update set
  download_count = 0,
  period_started_at = now(),
  updated_at = now()
returning download_count;
`
